package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"signal_bot/internal/journal"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/health/service"
	"signal_bot/pkg/logger"
)

type Config struct {
	Addr string // например ":8080"
}

func NewConfig(cfg *config.Config) Config {
	return Config{Addr: cfg.Health.Addr}
}

// History: журнал предложений; nil, если БД не настроена.
type History interface {
	Recent(ctx context.Context, limit int) ([]models.Proposal, error)
}

type proposalsResponse struct {
	StartedAt  time.Time                           `json:"started_at"`
	Duration   string                              `json:"duration"`
	Total      int                                 `json:"total"`
	Suppressed int                                 `json:"suppressed"`
	Errors     int                                 `json:"errors"`
	Proposals  map[models.Market][]models.Proposal `json:"proposals"`
	Failures   []models.InstrumentFailure          `json:"failures,omitempty"`
}

func NewRouter(state *service.State, gatherer prometheus.Gatherer, history History) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/livez", func(c *gin.Context) {
		// liveness: процесс жив
		c.String(http.StatusOK, "ok")
	})

	r.GET("/readyz", func(c *gin.Context) {
		// readiness: прошёл хотя бы один цикл
		if !state.Ready() {
			c.String(http.StatusServiceUnavailable, "not ready")
			return
		}
		c.String(http.StatusOK, "ready")
	})

	r.GET("/healthz", func(c *gin.Context) {
		resp := gin.H{
			"ready":     state.Ready(),
			"uptimeSec": int64(state.Uptime().Seconds()),
			"lastTickUnix": func() int64 {
				t := state.LastTick()
				if t.IsZero() {
					return 0
				}
				return t.Unix()
			}(),
		}
		if rep, ok := state.LastReport(); ok {
			resp["lastProposals"] = rep.Total()
			resp["lastErrors"] = rep.Errors
		}
		c.JSON(http.StatusOK, resp)
	})

	r.GET("/proposals", func(c *gin.Context) {
		rep, ok := state.LastReport()
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no completed cycle yet"})
			return
		}
		c.JSON(http.StatusOK, proposalsResponse{
			StartedAt:  rep.StartedAt,
			Duration:   rep.Duration.String(),
			Total:      rep.Total(),
			Suppressed: rep.Suppressed,
			Errors:     rep.Errors,
			Proposals:  rep.Proposals,
			Failures:   rep.Failures,
		})
	})

	r.GET("/proposals/history", func(c *gin.Context) {
		if history == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
			return
		}
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit <= 0 || limit > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be in 1..500"})
			return
		}
		props, err := history.Recent(c.Request.Context(), limit)
		if err != nil {
			logger.Error("health: journal recent: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "journal unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"proposals": props})
	})

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

func RunHTTP(lc fx.Lifecycle, cfg Config, router *gin.Engine) {
	if cfg.Addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return err
			}
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("health: serve: %v", err)
				}
			}()
			logger.Info("health: listening on %s", cfg.Addr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func historyFrom(j *journal.Journal) History {
	// typed nil в интерфейсе не даст отличить "журнал выключен"
	if j == nil {
		return nil
	}
	return j
}

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(
			service.NewState,
			NewConfig,
			historyFrom,
			func(state *service.State, reg *prometheus.Registry, history History) *gin.Engine {
				return NewRouter(state, reg, history)
			},
		),
		fx.Invoke(RunHTTP),
	)
}
