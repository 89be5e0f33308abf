package netclient

// Config 会话管理器配置
type Config struct {
	// Serializer 请求与协议消息的编码，json 或 msgpack
	Serializer string `mapstructure:"serializer" json:"serializer" yaml:"serializer" validate:"omitempty,oneof=json msgpack"`

	// LogPayload 在 debug 日志中输出消息内容
	LogPayload bool `mapstructure:"log_payload" json:"log_payload" yaml:"log_payload"`
	// PayloadLogLimit 输出内容的最大长度，0 为不限制
	PayloadLogLimit int `mapstructure:"payload_log_limit" json:"payload_log_limit" yaml:"payload_log_limit" validate:"gte=0"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Serializer:      "json",
		PayloadLogLimit: 512,
	}
}
