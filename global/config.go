package global

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Conf global config
var Conf Config

type Config struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Scheme string `yaml:"scheme"`
	Mode   string `yaml:"mode"`

	Prometheus PrometheusConfig `yaml:"prometheus"`
	Webhook    WebhookConfig    `yaml:"webhook"`

	AmazonSES  AmazonSESConfig  `yaml:"amazonses"`
	Mailjet    MailjetConfig    `yaml:"mailjet"`
	Sendinblue SendinblueConfig `yaml:"sendinblue"`
}

type PrometheusConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// WebhookConfig is the shared secret every ESP webhook endpoint requires as
// basic auth. Empty username+password disables the check (not recommended:
// anyone who learns the endpoint URL can feed the pipeline forged events).
type WebhookConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type AmazonSESConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	// AutoConfirmSubscriptions fetches the SNS SubscribeURL on authenticated
	// SubscriptionConfirmation requests. Default true.
	AutoConfirmSubscriptions *bool `yaml:"autoConfirmSubscriptions"`
}

type MailjetConfig struct {
	APIKey    string `yaml:"apiKey"`
	SecretKey string `yaml:"secretKey"`
	APIURL    string `yaml:"apiUrl"`
}

// SendinblueConfig only toggles the webhook normalizer; Sendinblue webhook
// posts carry no credentials beyond the shared secret.
type SendinblueConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoadConfig reads the yaml configuration file into Conf.
func LoadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var conf Config
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	Conf = conf
	return nil
}

// AutoConfirm resolves the AutoConfirmSubscriptions default.
func (c AmazonSESConfig) AutoConfirm() bool {
	if c.AutoConfirmSubscriptions == nil {
		return true
	}
	return *c.AutoConfirmSubscriptions
}
