package match

import (
	"sort"

	"onlyjobs_server/core/domain"
)

// GroupByThread partitions a batch of emails into Gmail threads and orphans.
// Emails inside each thread are sorted by received time ascending; status
// resolution downstream depends on that order.
func GroupByThread(emails []*domain.Email) (map[string][]*domain.Email, []*domain.Email) {
	threads := make(map[string][]*domain.Email)
	var orphans []*domain.Email

	for _, email := range emails {
		if email.ThreadID == "" {
			orphans = append(orphans, email)
			continue
		}
		threads[email.ThreadID] = append(threads[email.ThreadID], email)
	}

	for _, members := range threads {
		sort.SliceStable(members, func(a, b int) bool {
			return members[a].ReceivedAt.Before(members[b].ReceivedAt)
		})
	}
	return threads, orphans
}

// SortChronological orders emails by received time ascending, in place.
func SortChronological(emails []*domain.Email) {
	sort.SliceStable(emails, func(a, b int) bool {
		return emails[a].ReceivedAt.Before(emails[b].ReceivedAt)
	})
}
