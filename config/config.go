package config

import (
	"database/sql"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

type Config struct {
	App     App           `yaml:"app"`
	Server  Server        `yaml:"server"`
	Worker  Worker        `yaml:"worker"`
	Buckets Buckets       `yaml:"buckets"`
	DB      *sql.DB       `yaml:"db"`
	Queue   *Redis        `yaml:"redis"`
	Storage *minio.Client `yaml:"storage"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
	Workers  int    `yaml:"workers"`
}

type Worker struct {
	ID          string        `yaml:"id"`
	TempDir     string        `yaml:"temp_dir"`
	PollTimeout time.Duration `yaml:"poll_timeout"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	FFmpegPath  string        `yaml:"ffmpeg_path"`
}

type Buckets struct {
	Uploads string `yaml:"uploads"`
	Outputs string `yaml:"outputs"`
}

type Redis struct {
	Host  string `json:"host"`
	Port  int    `json:"port"`
	Pass  string `json:"pass"`
	DB    int    `json:"db"`
	Queue string `json:"queue"`
}

func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	viper.SetDefault("redis.queue", "convert")
	viper.SetDefault("worker.poll_timeout", "5s")
	viper.SetDefault("worker.retry_delay", "5s")
	viper.SetDefault("worker.ffmpeg_path", "ffmpeg")
	viper.SetDefault("worker.temp_dir", "/tmp/media_jobs")
	viper.SetDefault("buckets.uploads", "uploads")
	viper.SetDefault("buckets.outputs", "converted")

	db, err := sql.Open("postgres", viper.GetString("postgresql_host"))
	if err != nil {
		return nil, err
	}

	redisCfg := &Redis{
		Host:  viper.GetString("redis.host"),
		Port:  viper.GetInt("redis.port"),
		Pass:  viper.GetString("redis.pass"),
		DB:    viper.GetInt("redis.db"),
		Queue: viper.GetString("redis.queue"),
	}

	minioClient, err := minio.New(viper.GetString("minio.url"), &minio.Options{
		Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
		Secure: viper.GetBool("minio.secure"),
	})
	if err != nil {
		return nil, err
	}

	workerID := viper.GetString("worker.id")
	if workerID == "" {
		if host, err := os.Hostname(); err == nil {
			workerID = host
		} else {
			workerID = "worker"
		}
	}

	return &Config{
		App: App{
			Environment: viper.GetString("app.environment"),
			Host:        viper.GetString("app.host"),
			Protocol:    viper.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort: viper.GetString("server.port"),
			Workers:  viper.GetInt("server.workers"),
		},
		Worker: Worker{
			ID:          workerID,
			TempDir:     viper.GetString("worker.temp_dir"),
			PollTimeout: viper.GetDuration("worker.poll_timeout"),
			RetryDelay:  viper.GetDuration("worker.retry_delay"),
			FFmpegPath:  viper.GetString("worker.ffmpeg_path"),
		},
		Buckets: Buckets{
			Uploads: viper.GetString("buckets.uploads"),
			Outputs: viper.GetString("buckets.outputs"),
		},
		DB:      db,
		Queue:   redisCfg,
		Storage: minioClient,
	}, nil
}
