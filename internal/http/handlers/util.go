package handlers

import (
	"sort"

	"github.com/yungbote/majorgraph-backend/internal/jobs/worker"
	"github.com/yungbote/majorgraph-backend/internal/platform/apierr"
)

var (
	errBadRef             = worker.ErrBadRef
	errRunNotFound        = apierr.NotFound("run_not_found", "run not found")
	errRunHistoryDisabled = apierr.Unavailable("run_history_disabled", "run history is not configured")
)

func sortStrings(s []string) []string {
	sort.Strings(s)
	return s
}
