package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/pulse-chat/backend/internal/format"
	"github.com/zhouzirui/pulse-chat/backend/internal/handler/auth"
	"github.com/zhouzirui/pulse-chat/backend/internal/handler/chat"
	"github.com/zhouzirui/pulse-chat/backend/internal/handler/faq"
	"github.com/zhouzirui/pulse-chat/backend/internal/handler/stream"
	"github.com/zhouzirui/pulse-chat/backend/internal/handler/workspace"
	middlewarePkg "github.com/zhouzirui/pulse-chat/backend/internal/middleware"
	faqModel "github.com/zhouzirui/pulse-chat/backend/internal/model/faq"
	workspaceService "github.com/zhouzirui/pulse-chat/backend/internal/service/workspace"
	"github.com/zhouzirui/pulse-chat/backend/pkg/logger"
	"github.com/zhouzirui/pulse-chat/backend/pkg/utils"
)

// Dependencies 路由所需的服务。
type Dependencies struct {
	Accounts           auth.Accounts
	Workspaces         *workspaceService.Service
	FAQs               faqModel.Source
	Renderer           *format.Renderer
	AllowedOrigins     []string
	LoginRatePerMinute int
	CookieSecure       bool
	// TrustProxy 控制是否按转发头改写客户端地址，登录限流以该地址为键。
	TrustProxy bool
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if deps.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logger.L(), NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Create handlers
	authHandler := auth.New(deps.Accounts, deps.Workspaces, auth.Options{
		CookieSecure: deps.CookieSecure,
		LoginLimit:   middlewarePkg.NewRateLimiter(deps.LoginRatePerMinute).Middleware,
	})
	faqHandler := faq.New(deps.FAQs)
	workspaceHandler := workspace.New()
	chatHandler := chat.New(deps.FAQs, deps.Renderer)
	streamHandler := stream.New(deps.AllowedOrigins)

	r.Route("/api", func(api chi.Router) {
		authHandler.RegisterRoutes(api)
		faqHandler.RegisterRoutes(api)

		api.Group(func(private chi.Router) {
			private.Use(middlewarePkg.RequireWorkspace(deps.Workspaces))

			workspaceHandler.RegisterRoutes(private)
			private.Route("/chat", func(c chi.Router) {
				chatHandler.RegisterRoutes(c)
				streamHandler.RegisterRoutes(c)
			})
		})
	})

	return r
}
