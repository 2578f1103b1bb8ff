// apnsd consumes push jobs from an NSQ topic and delivers them to APNS over
// the legacy binary protocol. The feedback service is polled on its own
// interval and unreachable tokens are recorded in Redis so upstream
// services stop targeting them.
//
// Configuration is read from a YAML file (see -config); a .env file in the
// working directory is loaded first.
package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kr/pretty"
	nsq "github.com/nsqio/go-nsq"
	redis "github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/omnidynmc/apns"
)

const defaultTickInterval = 100 * time.Millisecond

type daemonConfig struct {
	Apns     *apns.Config `yaml:"apns"`
	Feedback *apns.Config `yaml:"feedback"`
	NSQ      struct {
		Addr    string `yaml:"addr"`
		Topic   string `yaml:"topic"`
		Channel string `yaml:"channel"`
	} `yaml:"nsq"`
	Redis struct {
		Addr      string `yaml:"addr"`
		Namespace string `yaml:"namespace"`
		TTL       string `yaml:"ttl"`
	} `yaml:"redis"`
}

// pushJob is the message format consumed from NSQ.
type pushJob struct {
	DeviceToken      string `json:"deviceToken"`
	Text             string `json:"text"`
	SoundName        string `json:"soundName,omitempty"`
	ActionKeyCaption string `json:"actionKeyCaption,omitempty"`
	CustomIdentifier string `json:"id,omitempty"`
	Badge            *int   `json:"badge,omitempty"`
}

func main() {
	godotenv.Load()
	configFileName := flag.String("config", envOr("APNSD_CONFIG", "apnsd.yaml"),
		"YAML configuration `file`")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *verbose {
		apns.LogLevel = apns.LogDebug
	}

	config, err := loadDaemonConfig(*configFileName)
	if err != nil {
		log.Fatalln("Error loading config:", err)
	}
	logCertificate(config.Apns, *verbose)

	engine := apns.NewPushEngine(config.Apns)
	defer engine.Close()

	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: config.Redis.Addr})
	defer rdb.Close()
	ttl, err := time.ParseDuration(config.Redis.TTL)
	if err != nil {
		ttl = 30 * 24 * time.Hour
	}
	feedback := apns.NewFeedbackEngine(config.Feedback, func(r *apns.FeedbackRecord) {
		key := fmt.Sprintf("%s:unreachable:%s", config.Redis.Namespace, r.DeviceToken)
		if err := rdb.Set(ctx, key, r.Timestamp.Unix(), ttl).Err(); err != nil {
			log.Println("Error recording unreachable token:", err)
		}
	})

	consumer, err := nsq.NewConsumer(config.NSQ.Topic, config.NSQ.Channel, nsq.NewConfig())
	if err != nil {
		log.Fatalln("Error creating NSQ consumer:", err)
	}
	consumer.AddHandler(nsq.HandlerFunc(func(m *nsq.Message) error {
		var job pushJob
		if err := json.Unmarshal(m.Body, &job); err != nil {
			// malformed jobs are dropped, requeueing cannot fix them
			log.Println("Error parsing push job:", err)
			return nil
		}
		msg := apns.NewMessage(job.DeviceToken, job.Text)
		msg.Sandbox = config.Apns.Sandbox
		msg.SoundName = job.SoundName
		msg.ActionKeyCaption = job.ActionKeyCaption
		msg.CustomIdentifier = job.CustomIdentifier
		if job.Badge != nil {
			msg.BadgeNumber = *job.Badge
		}
		engine.Add(msg)
		return nil
	}))
	if err = consumer.ConnectToNSQD(config.NSQ.Addr); err != nil {
		log.Fatalln("Error connecting to nsqd:", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	ticker := time.NewTicker(defaultTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sig:
			log.Println("Shutting down")
			consumer.Stop()
			<-consumer.StopChan
			return
		case <-ticker.C:
			engine.Run()
			feedback.Run()
		}
	}
}

func loadDaemonConfig(filename string) (*daemonConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config := new(daemonConfig)
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}
	if config.Apns == nil {
		config.Apns = new(apns.Config)
	}
	if config.Feedback == nil {
		config.Feedback = &apns.Config{
			CertFile: config.Apns.CertFile,
			KeyFile:  config.Apns.KeyFile,
			CAPath:   config.Apns.CAPath,
			Sandbox:  config.Apns.Sandbox,
			Timeout:  time.Hour,
		}
	}
	return config, nil
}

// logCertificate reports what certificate the daemon is about to present.
func logCertificate(config *apns.Config, verbose bool) {
	cert := config.Certificate
	if cert == nil {
		pair, err := tls.LoadX509KeyPair(config.CertFile, config.KeyFile)
		if err != nil {
			log.Fatalln("Error loading certificate pair:", err)
		}
		cert = &pair
	}
	summary, err := apns.SummarizeCertificate(*cert)
	if err != nil {
		log.Fatalln("Error inspecting certificate:", err)
	}
	log.Println("Certificate:", summary)
	if summary.Expired() {
		log.Fatalln("Error: certificate is expired")
	}
	if verbose {
		log.Println(pretty.Sprint(summary))
	}
}

func envOr(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}
