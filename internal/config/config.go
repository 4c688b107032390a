package config

// Config 病区监护服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	HTTP struct {
		Addr string
	}

	// 监护采样配置
	Monitor struct {
		// 采样间隔（秒），默认 8秒
		SampleInterval int
		// 观察者（护士）临近判定的过期窗口（秒），默认 10秒
		ProximityStaleWindow int
		// 默认监护手环ID（单手环部署）
		DefaultBandID string

		// Redis 缓存配置
		Cache struct {
			RealtimeKeyPrefix string // 实时数据缓存键前缀，如 "ward:band:"
			RealtimeSuffix    string // 实时数据缓存键后缀，如 ":realtime"
			AlarmSuffix       string // 报警数据缓存键后缀，如 ":alarms"
			AlarmTTL          int    // 报警数据 TTL（秒），默认 30秒
		}
	}

	// 分类器配置
	Classifier struct {
		Mode              string // "local"（加载权重文件）或 "remote"（HTTP推理服务）
		GeneralModelPath  string
		CriticalModelPath string
		RemoteBaseURL     string
		TimeoutSeconds    int
	}

	// 手环数据 MQTT 主题
	Ingest struct {
		VitalsTopic string // 如 "band/+/vitals"
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "wardmonitor")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Enabled = getEnvBool("MQTT_ENABLED", false)
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "ward-monitor")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8000")

	cfg.Monitor.SampleInterval = getEnvInt("SAMPLE_INTERVAL", 8)
	cfg.Monitor.ProximityStaleWindow = getEnvInt("PROXIMITY_STALE_WINDOW", 10)
	cfg.Monitor.DefaultBandID = getEnv("DEFAULT_BAND_ID", "BAND_01")

	cfg.Monitor.Cache.RealtimeKeyPrefix = getEnv("CACHE_REALTIME_PREFIX", "ward:band:")
	cfg.Monitor.Cache.RealtimeSuffix = ":realtime"
	cfg.Monitor.Cache.AlarmSuffix = ":alarms"
	cfg.Monitor.Cache.AlarmTTL = getEnvInt("CACHE_ALARM_TTL", 30)

	cfg.Classifier.Mode = getEnv("CLASSIFIER_MODE", "local")
	cfg.Classifier.GeneralModelPath = getEnv("GENERAL_MODEL_PATH", "models/general_model.json")
	cfg.Classifier.CriticalModelPath = getEnv("CRITICAL_MODEL_PATH", "models/critical_model.json")
	cfg.Classifier.RemoteBaseURL = getEnv("CLASSIFIER_URL", "http://localhost:9000")
	cfg.Classifier.TimeoutSeconds = getEnvInt("CLASSIFIER_TIMEOUT", 5)

	cfg.Ingest.VitalsTopic = getEnv("INGEST_VITALS_TOPIC", "band/+/vitals")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}
