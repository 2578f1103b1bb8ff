package apns

import (
	"crypto/tls"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config описывает конфигурацию для соединения с APNS.
//
// The same configuration can construct both a PushEngine and a
// FeedbackEngine; Timeout means idle-disconnect for the former and poll
// interval for the latter. An empty Host selects the default endpoint for
// the engine being built, honoring the Sandbox flag.
type Config struct {
	Host     string        `yaml:"host,omitempty"`
	Port     int           `yaml:"port,omitempty"`
	CertFile string        `yaml:"certFile"`
	KeyFile  string        `yaml:"keyFile"`
	CAPath   string        `yaml:"caPath,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	Sandbox  bool          `yaml:"sandbox,omitempty"`

	// Certificate, when set, is used instead of CertFile and KeyFile.
	// Use LoadCertificate to fill it from a .p12 bundle.
	Certificate *tls.Certificate `yaml:"-"`
}

// LoadConfig загружает и возвращает конфигурацию для APNS из YAML-файла.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config := new(Config)
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}
	return config, nil
}

// configYAML описывает структуру конфигурации в формате YAML.
type configYAML struct {
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	CertFile string `yaml:"certFile"`
	KeyFile  string `yaml:"keyFile"`
	CAPath   string `yaml:"caPath,omitempty"`
	Timeout  string `yaml:"timeout,omitempty"`
	Sandbox  bool   `yaml:"sandbox,omitempty"`
}

// UnmarshalYAML позволяет читать данную конфигурацию из YAML. The timeout is
// written in time.Duration notation ("90s", "5m", "1h").
func (config *Config) UnmarshalYAML(value *yaml.Node) error {
	data := new(configYAML)
	if err := value.Decode(data); err != nil {
		return err
	}
	var timeout time.Duration
	if data.Timeout != "" {
		var err error
		if timeout, err = time.ParseDuration(data.Timeout); err != nil {
			return err
		}
	}
	*config = Config{
		Host:     data.Host,
		Port:     data.Port,
		CertFile: data.CertFile,
		KeyFile:  data.KeyFile,
		CAPath:   data.CAPath,
		Timeout:  timeout,
		Sandbox:  data.Sandbox,
	}
	return nil
}

// GatewayAddr returns the push gateway host:port for this configuration.
func (config *Config) GatewayAddr() string {
	host := config.Host
	if host == "" {
		if config.Sandbox {
			host = ServerApnsSandbox
		} else {
			host = ServerApns
		}
	}
	port := config.Port
	if port == 0 {
		port = PortApns
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// FeedbackAddr returns the feedback service host:port for this configuration.
func (config *Config) FeedbackAddr() string {
	host := config.Host
	if host == "" {
		if config.Sandbox {
			host = ServerFeedbackSandbox
		} else {
			host = ServerFeedback
		}
	}
	port := config.Port
	if port == 0 {
		port = PortFeedback
	}
	return fmt.Sprintf("%s:%d", host, port)
}
