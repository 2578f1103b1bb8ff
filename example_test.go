package apns_test

import (
	"time"

	"github.com/omnidynmc/apns"
)

func Example() {
	config := &apns.Config{
		CertFile: "cert.pem",
		KeyFile:  "key.pem",
		CAPath:   "/etc/ssl/certs",
		Sandbox:  true,
		Timeout:  5 * time.Minute,
	}
	engine := apns.NewPushEngine(config)
	defer engine.Close()

	msg := apns.NewMessage(
		"883982d4b525fd15fdcff6b05d7e0a4b8f86cb4e384f5a2fe0ff0569212af4d0",
		"Hello!")
	msg.BadgeNumber = 1
	msg.SoundName = "default"
	engine.Add(msg)

	feedback := apns.NewFeedbackEngine(&apns.Config{
		CertFile: config.CertFile,
		KeyFile:  config.KeyFile,
		Sandbox:  true,
		Timeout:  time.Hour,
	}, func(r *apns.FeedbackRecord) {
		// stop sending to r.DeviceToken
	})

	// the host's main loop drives both engines
	for engine.SendQueueSize() > 0 {
		engine.Run()
		feedback.Run()
		time.Sleep(100 * time.Millisecond)
	}
}
