package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// methodOnly 只放行指定方法
func methodOnly(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}

// RegisterEnvironmentRoutes 环境数据路由
func (r *Router) RegisterEnvironmentRoutes(h *EnvironmentHandler) {
	r.Handle("/api/available-dates", methodOnly(http.MethodGet, h.AvailableDates))
	r.Handle("/api/environment-data", methodOnly(http.MethodGet, h.EnvironmentData))
	r.Handle("/api/latest-readings", methodOnly(http.MethodGet, h.LatestReadings))
}

// RegisterAlertRoutes 告警路由
func (r *Router) RegisterAlertRoutes(h *AlertHandler) {
	r.Handle("/api/create-alert", methodOnly(http.MethodPost, h.Create))
	r.Handle("/api/unacknowledged-alerts", methodOnly(http.MethodGet, h.Unacknowledged))
	r.Handle("/api/acknowledge-alert", methodOnly(http.MethodPost, h.Acknowledge))
}

// RegisterChatRoutes 聊天与记录审核路由
func (r *Router) RegisterChatRoutes(h *ChatHandler) {
	r.Handle("/api/chat", methodOnly(http.MethodPost, h.Chat))
	r.Handle("/api/note-check", methodOnly(http.MethodPost, h.NoteCheck))
}

// RegisterExportRoutes 导出路由
func (r *Router) RegisterExportRoutes(h *ExportHandler) {
	r.Handle("/api/export", methodOnly(http.MethodGet, h.Export))
}

// RegisterReportRoutes 事故报告路由
func (r *Router) RegisterReportRoutes(h *ReportHandler) {
	r.Handle("/api/accident-report", methodOnly(http.MethodPost, h.Create))
}

// RegisterHealthRoute 健康检查
func (r *Router) RegisterHealthRoute() {
	r.Handle("/health", methodOnly(http.MethodGet, func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "ok"}))
	}))
}
