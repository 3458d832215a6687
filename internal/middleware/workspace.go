package middleware

import (
	"context"
	"net/http"

	"github.com/zhouzirui/pulse-chat/backend/internal/service/workspace"
	"github.com/zhouzirui/pulse-chat/backend/pkg/logger"
	"github.com/zhouzirui/pulse-chat/backend/pkg/utils"
)

// WorkspaceCookie carries the workspace id of a signed-in client.
const WorkspaceCookie = "pulse_workspace"

type workspaceKey struct{}

// WorkspaceLookup 按标识查找工作区。
type WorkspaceLookup interface {
	Get(id string) (*workspace.State, error)
}

// RequireWorkspace resolves the workspace cookie and rejects requests without an
// authenticated workspace with 401.
func RequireWorkspace(workspaces WorkspaceLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(WorkspaceCookie)
			if err != nil || cookie.Value == "" {
				utils.RespondError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			state, err := workspaces.Get(cookie.Value)
			if err != nil || !state.SignedIn() {
				logger.WithField("workspace", cookie.Value).Debug("rejected unknown workspace cookie")
				utils.RespondError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithWorkspace(r.Context(), state)))
		})
	}
}

// WithWorkspace 把工作区放入 context。
func WithWorkspace(ctx context.Context, state *workspace.State) context.Context {
	return context.WithValue(ctx, workspaceKey{}, state)
}

// WorkspaceFrom returns the workspace stored by RequireWorkspace, or nil.
func WorkspaceFrom(ctx context.Context) *workspace.State {
	state, _ := ctx.Value(workspaceKey{}).(*workspace.State)
	return state
}
