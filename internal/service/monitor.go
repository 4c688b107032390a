package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"ward-monitor/internal/classifier"
	"ward-monitor/internal/config"
	"ward-monitor/internal/database"
	"ward-monitor/internal/httpapi"
	"ward-monitor/internal/hub"
	"ward-monitor/internal/ingest"
	"ward-monitor/internal/models"
	"ward-monitor/internal/monitor"
	"ward-monitor/internal/mqtt"
	"ward-monitor/internal/proximity"
	"ward-monitor/internal/repository"
)

// MonitorService 病区监护服务（整合各层）
type MonitorService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger

	// 各层组件
	patientsRepo repository.PatientsRepository
	vitalsRepo   repository.VitalsRepository
	alarmsRepo   repository.AlarmEventsRepository
	cacheManager *monitor.CacheManager
	tracker      *proximity.Tracker
	hub          *hub.Hub
	classifiers  *classifier.WardClassifiers
	pipeline     *monitor.Pipeline
	sampler      *monitor.Sampler
	mqttClient   *mqtt.Client
	consumer     *ingest.MQTTConsumer
	httpServer   *http.Server
}

// NewMonitorService 创建监护服务
func NewMonitorService(cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	// 1. 连接数据库并初始化表结构
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx := context.Background()
	if err := repository.InitSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	// 2. 连接 Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 创建 Repository 层
	patientsRepo := repository.NewPostgresPatientsRepository(db)
	vitalsRepo := repository.NewPostgresVitalsRepository(db)
	alarmsRepo := repository.NewPostgresAlarmEventsRepository(db)

	// 4. 创建运行时组件
	cacheManager := monitor.NewCacheManager(cfg, redisClient, logger)
	tracker := proximity.NewTracker(
		time.Duration(cfg.Monitor.ProximityStaleWindow)*time.Second, logger)
	h := hub.NewHub(logger)

	// 5. 加载病区分类器
	// 分类器不可用时降级为纯 CRUD 模式：采样与接入停用，传感器路径返回 503
	var pipeline *monitor.Pipeline
	var sampler *monitor.Sampler
	var processor httpapi.ReadingProcessor

	classifiers, err := classifier.Build(cfg, logger)
	if err != nil {
		logger.Error("Classifier unavailable, starting in CRUD-only degraded mode",
			zap.Error(err),
		)
		processor = unavailableProcessor{}
	} else {
		// 6. 决策管线与采样循环
		pipeline = monitor.NewPipeline(
			classifiers, tracker, vitalsRepo, alarmsRepo, cacheManager, h, logger)
		sampler = monitor.NewSampler(
			time.Duration(cfg.Monitor.SampleInterval)*time.Second,
			patientsRepo, pipeline, monitor.NewSimulatorRegistry(), logger)
		processor = pipeline
	}

	// 7. 手环 MQTT 接入（可选，降级模式下停用）
	var mqttClient *mqtt.Client
	var consumer *ingest.MQTTConsumer
	if cfg.MQTT.Enabled && pipeline != nil {
		mqttClient, err = mqtt.NewClient(&cfg.MQTT, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect mqtt broker: %w", err)
		}
		consumer = ingest.NewMQTTConsumer(cfg, mqttClient, patientsRepo, pipeline, logger)
	}

	// 8. HTTP 路由
	router := httpapi.NewRouter(logger)
	router.RegisterRoutes(&httpapi.Handlers{
		Patients: httpapi.NewPatientHandler(cfg, patientsRepo, vitalsRepo, alarmsRepo, cacheManager, logger),
		Nurses:   httpapi.NewNurseHandler(tracker, logger),
		Sensors:  httpapi.NewSensorHandler(cfg, patientsRepo, processor, logger),
		WS:       httpapi.NewWSHandler(h, tracker, logger),
		Export:   httpapi.NewAlarmExportHandler(alarmsRepo, logger),
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &MonitorService{
		config:       cfg,
		db:           db,
		redisClient:  redisClient,
		logger:       logger,
		patientsRepo: patientsRepo,
		vitalsRepo:   vitalsRepo,
		alarmsRepo:   alarmsRepo,
		cacheManager: cacheManager,
		tracker:      tracker,
		hub:          h,
		classifiers:  classifiers,
		pipeline:     pipeline,
		sampler:      sampler,
		mqttClient:   mqttClient,
		consumer:     consumer,
		httpServer:   httpServer,
	}, nil
}

// Start 启动服务，阻塞直到 ctx 取消或 HTTP 服务退出
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting ward monitor service",
		zap.String("http_addr", s.config.HTTP.Addr),
		zap.Int("sample_interval_seconds", s.config.Monitor.SampleInterval),
		zap.Bool("mqtt_enabled", s.config.MQTT.Enabled),
	)

	// 采样循环（降级模式下未创建）
	if s.sampler != nil {
		go s.sampler.Run(ctx)
	}

	// 手环 MQTT 消费
	if s.consumer != nil {
		go func() {
			if err := s.consumer.Start(ctx); err != nil {
				s.logger.Error("mqtt consumer stopped",
					zap.Error(err),
				)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	}
}

// Stop 停止服务
func (s *MonitorService) Stop() error {
	s.logger.Info("Stopping ward monitor service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Failed to shutdown http server",
			zap.Error(err),
		)
	}

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	return nil
}

// unavailableProcessor 降级模式下的传感器路径占位：
// 任何读数处理请求都返回错误，HTTP 层据此回 503
type unavailableProcessor struct{}

func (unavailableProcessor) Process(context.Context, *models.Patient, models.VitalsSample) (*models.AlarmDecision, error) {
	return nil, errors.New("classifier unavailable, monitoring is disabled")
}
