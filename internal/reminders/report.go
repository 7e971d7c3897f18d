package reminders

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sandeepkv93/taskremind/internal/store"
)

// TaskReport compares the cache against the platform for one task.
type TaskReport struct {
	TaskID         int64
	Cached         []string
	Scheduled      []store.Scheduled
	MissingInCache []string
	MissingInStore []string
}

func (r TaskReport) Consistent() bool {
	return len(r.MissingInCache) == 0 && len(r.MissingInStore) == 0
}

type Report struct {
	GeneratedAt    time.Time
	StoreAvailable bool
	Stats          CacheStats
	Tasks          []TaskReport
}

// Mismatches counts tasks whose cache disagrees with the platform.
func (r Report) Mismatches() int {
	n := 0
	for _, t := range r.Tasks {
		if !t.Consistent() {
			n++
		}
	}
	return n
}

// CacheReport lists cache and platform entries side by side. If the platform
// cannot be listed the report only carries the cache.
func (s *Service) CacheReport(ctx context.Context) Report {
	rep := Report{GeneratedAt: s.now(), Stats: s.cache.Stats()}

	all, err := s.list(ctx)
	byTask := map[int64][]store.Scheduled{}
	if err != nil {
		s.log.Printf("[ERROR] Cannot list notifications for cache report: %s\n", err.Error())
	} else {
		rep.StoreAvailable = true
		byTask = store.GroupByTask(all)
	}

	ids := make(map[int64]struct{})
	for _, id := range s.cache.TaskIDs() {
		ids[id] = struct{}{}
	}
	for id := range byTask {
		ids[id] = struct{}{}
	}

	for id := range ids {
		tr := TaskReport{TaskID: id, Cached: s.cache.Get(id), Scheduled: byTask[id]}
		if rep.StoreAvailable {
			tr.MissingInCache, tr.MissingInStore = diffIDs(tr.Cached, tr.Scheduled)
		}
		rep.Tasks = append(rep.Tasks, tr)
	}
	sort.Slice(rep.Tasks, func(i, j int) bool { return rep.Tasks[i].TaskID < rep.Tasks[j].TaskID })
	return rep
}

func diffIDs(cached []string, scheduled []store.Scheduled) (missingInCache, missingInStore []string) {
	inCache := make(map[string]bool, len(cached))
	for _, id := range cached {
		inCache[id] = true
	}
	inStore := make(map[string]bool, len(scheduled))
	for _, item := range scheduled {
		inStore[item.ID] = true
		if !inCache[item.ID] {
			missingInCache = append(missingInCache, item.ID)
		}
	}
	for _, id := range cached {
		if !inStore[id] {
			missingInStore = append(missingInStore, id)
		}
	}
	return missingInCache, missingInStore
}

// Markdown renders the report for the diagnostics view.
func (r Report) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Notification cache\n\n")
	fmt.Fprintf(&b, "Generated %s. Cache holds **%d** notifications for **%d** tasks.\n\n",
		r.GeneratedAt.Format("2006-01-02 15:04:05"), r.Stats.Notifications, r.Stats.Tasks)
	if !r.StoreAvailable {
		b.WriteString("> Platform schedule unavailable, showing cache only.\n\n")
	}
	if len(r.Tasks) == 0 {
		b.WriteString("_Nothing scheduled._\n")
		return b.String()
	}

	b.WriteString("| Task | Cached | Scheduled | Missing in cache | Missing in store |\n")
	b.WriteString("|---:|---:|---:|---|---|\n")
	for _, t := range r.Tasks {
		fmt.Fprintf(&b, "| %d | %d | %d | %s | %s |\n",
			t.TaskID, len(t.Cached), len(t.Scheduled),
			joinOrDash(t.MissingInCache), joinOrDash(t.MissingInStore))
	}

	for _, t := range r.Tasks {
		if len(t.Scheduled) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## Task %d\n\n", t.TaskID)
		for _, item := range t.Scheduled {
			fmt.Fprintf(&b, "- `%s` %s at %s: %s\n",
				item.ID, item.Data.Type, item.TriggerTime.Format("2006-01-02 15:04"), item.Title)
		}
	}
	return b.String()
}

func joinOrDash(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ", ")
}
