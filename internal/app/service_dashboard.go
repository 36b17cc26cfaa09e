package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"workhub/api/internal/store"
)

const (
	dashboardRecentFiles    = 5
	dashboardOpenTasks      = 5
	dashboardRecentPosts    = 4
	dashboardRecentActivity = 8
)

// Dashboard aggregates the caller's workspace. Nothing is cached; every
// request reads the current rows.
func (s *Service) Dashboard(ctx context.Context, userID string) (map[string]any, error) {
	var (
		files     []store.KnowledgeFile
		folders   []store.Folder
		tasks     []store.Task
		posts     []store.IntelligencePost
		postCount int
		favorites int
		activity  []store.ActivityLog
	)
	today := s.now()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() (err error) {
		files, err = s.store.ListFiles(gctx, userID, nil)
		return err
	})
	group.Go(func() (err error) {
		folders, err = s.store.ListFolders(gctx, userID)
		return err
	})
	group.Go(func() (err error) {
		tasks, err = s.store.ListTasks(gctx, userID)
		return err
	})
	group.Go(func() (err error) {
		posts, err = s.store.ListPosts(gctx, userID, "", dashboardRecentPosts)
		return err
	})
	group.Go(func() (err error) {
		postCount, err = s.store.CountPosts(gctx)
		return err
	})
	group.Go(func() (err error) {
		favorites, err = s.store.CountFavorites(gctx, userID)
		return err
	})
	group.Go(func() (err error) {
		activity, err = s.store.ListActivity(gctx, userID, today, dashboardRecentActivity)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	byStatus := map[string]int{
		store.TaskStatusTodo:       0,
		store.TaskStatusInProgress: 0,
		store.TaskStatusDone:       0,
	}
	open := make([]store.Task, 0, dashboardOpenTasks)
	for _, task := range tasks {
		byStatus[task.Status]++
		if task.Status != store.TaskStatusDone && len(open) < dashboardOpenTasks {
			open = append(open, task)
		}
	}

	return map[string]any{
		"counts": map[string]any{
			"files":         len(files),
			"folders":       len(folders),
			"tasks":         len(tasks),
			"tasksByStatus": byStatus,
			"openTasks":     len(tasks) - byStatus[store.TaskStatusDone],
			"posts":         postCount,
			"favorites":     favorites,
		},
		"recentFiles":    mapSlice(head(files, dashboardRecentFiles), fileJSON),
		"openTasks":      mapSlice(open, taskJSON),
		"recentPosts":    mapSlice(head(posts, dashboardRecentPosts), postJSON),
		"recentActivity": mapSlice(head(activity, dashboardRecentActivity), activityJSON),
		"generatedAt":    formatTime(today),
	}, nil
}

func head[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

