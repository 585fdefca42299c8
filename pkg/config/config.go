package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	DB     DBConfig
	JWT    JWTConfig
	Debate DebateConfig
}

type ServerConfig struct {
	Address string
}

type DBConfig struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     int
}

type JWTConfig struct {
	Secret string
}

// DebateConfig 控制房間協議的時間參數與常駐測試房
type DebateConfig struct {
	CountdownFrom int           // 開賽倒數起點
	TickInterval  time.Duration // 倒數間隔
	TurnDuration  time.Duration // 每回合發言時長
	TestRoomID    string        // 清空時重設而不刪除的房間
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./pkg/config")

	viper.SetDefault("debate.countdownfrom", 5)
	viper.SetDefault("debate.tickinterval", time.Second)
	viper.SetDefault("debate.turnduration", 60*time.Second)
	viper.SetDefault("debate.testroomid", "demo")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
