package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/soilsim/internal/api"
	"github.com/annel0/soilsim/internal/config"
	"github.com/annel0/soilsim/internal/logging"
	"github.com/annel0/soilsim/internal/material"
	"github.com/annel0/soilsim/internal/metrics"
	"github.com/annel0/soilsim/internal/observability"
	"github.com/annel0/soilsim/internal/session"
	"gonum.org/v1/gonum/spatial/r3"
)

func main() {
	var (
		configPath = flag.String("config", "", "Путь к YAML конфигу (по умолчанию $SOIL_CONFIG)")
		frames     = flag.Int("frames", 600, "Число кадров симуляции")
		dt         = flag.Float64("dt", 1.0/60, "Длительность кадра, с")
		digs       = flag.String("dig", "0,0", "Точки копания: \"x,z\" или \"x,y,z\" через ';'")
		status     = flag.Bool("status", false, "Поднять HTTP-сервер состояния")
		realtime   = flag.Bool("realtime", false, "Выдерживать длительность кадра в реальном времени")
	)
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	logOpts, err := cfg.LoggingOptions()
	if err != nil {
		log.Fatalf("❌ Ошибка настройки логирования: %v", err)
	}
	if err := logging.InitDefaultLoggerWithOptions("soilsim", logOpts); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	logging.GetLoggerManager().SetOptions(logOpts)
	defer logging.GetLoggerManager().CloseAll()

	targets, err := parseDigs(*digs)
	if err != nil {
		logging.Error("❌ %v", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, targets, *frames, *dt, *status, *realtime); err != nil {
		logging.Error("❌ %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, targets []digTarget, frames int, dt float64, withStatus, realtime bool) error {
	logging.Info("🌍 Запуск симулятора грунта: %d кадров по %.4f с", frames, dt)

	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, cfg.Telemetry.ServiceName)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logging.Warn("Ошибка остановки OpenTelemetry: %v", err)
			}
		}()
	}

	rec, err := metrics.NewRecorder(nil)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	sess, err := session.New(cfg, session.WithMetrics(rec))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	var statusServer *api.StatusServer
	if withStatus {
		statusServer, err = api.NewStatusServer(api.Config{
			Addr: fmt.Sprintf(":%d", cfg.Server.GetStatusPort()),
		})
		if err != nil {
			return fmt.Errorf("create status server: %w", err)
		}
		go func() {
			if err := statusServer.Start(); err != nil {
				logging.Error("❌ Ошибка сервера состояния: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := statusServer.Stop(shutdownCtx); err != nil {
				logging.Warn("Ошибка остановки сервера состояния: %v", err)
			}
		}()
		statusServer.Publish(sess.Stats())
	}

	up := r3.Vec{Y: 1}
	for _, t := range targets {
		point := r3.Vec{X: t.X, Y: t.Y, Z: t.Z}
		if !t.HasY {
			p, ok := sess.SurfaceAt(t.X, t.Z)
			if !ok {
				logging.Warn("⚠️ Нет поверхности в столбце (%.3f, %.3f), копание пропущено", t.X, t.Z)
				continue
			}
			point = p
		}
		m := sess.MaterialAt(point)
		logging.Info("🧱 Грунт в точке копания: %s (слой %d, φ=%.1f°, c=%.2f)",
			m.Name, m.Layer, m.Properties.FrictionAngle/material.Deg, m.Properties.Cohesion)
		sess.Dig(ctx, point, up)
	}

	frameDur := time.Duration(dt * float64(time.Second))
	for frame := 0; frame < frames; frame++ {
		if ctx.Err() != nil {
			logging.Info("📡 Получен сигнал завершения на кадре %d", frame)
			break
		}

		start := time.Now()
		sess.Update(ctx, dt)
		if statusServer != nil {
			statusServer.Publish(sess.Stats())
		}

		// Без сервера и реального времени после затихания делать нечего
		if !sess.Active() && statusServer == nil && !realtime {
			logging.Debug("Симуляция затихла на кадре %d", frame)
			break
		}
		if realtime {
			if rest := frameDur - time.Since(start); rest > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(rest):
				}
			}
		}
	}

	st := sess.Stats()
	logging.Info("✅ Итог: кадров %d, проходов %d, переносов %d, сетка %d вершин / %d треугольников, активна=%v",
		st.Frames, st.Passes, st.Transfers, st.Vertices, st.Triangles, st.SimActive)

	if statusServer != nil && ctx.Err() == nil {
		logging.Info("🌐 Сервер состояния продолжает работу, Ctrl+C для выхода")
		<-ctx.Done()
	}
	return nil
}
