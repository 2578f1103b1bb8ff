// Send Apple Push notification over the legacy binary protocol.
//
//	./push [-params] <token> [<token2> [...]]
//	  -config file
//	        YAML configuration file
//	  -c certificate
//	        client certificate (PEM, default "cert.pem")
//	  -k key
//	        private key (PEM, default "key.pem")
//	  -ca directory
//	        directory of trusted CA certificates
//	  -p12 bundle
//	        .p12 certificate bundle instead of the PEM pair
//	  -p password
//	        p12 password
//	  -t    use development service
//	  -a text
//	        message text (default "Hello!")
//	  -b badge
//	        badge number, negative leaves the badge unset
//	  -s sound
//	        sound name
//	  -v    debug logging
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/omnidynmc/apns"
)

func main() {
	configFileName := flag.String("config", "", "YAML configuration `file`")
	certFileName := flag.String("c", "cert.pem", "client `certificate` (PEM)")
	keyFileName := flag.String("k", "key.pem", "private `key` (PEM)")
	caPath := flag.String("ca", "", "`directory` of trusted CA certificates")
	p12FileName := flag.String("p12", "", ".p12 certificate `bundle`")
	password := flag.String("p", "", "p12 `password`")
	development := flag.Bool("t", false, "use sandbox service")
	alert := flag.String("a", "Hello!", "message `text`")
	badge := flag.Int("b", -1, "`badge` number")
	sound := flag.String("s", "", "`sound` name")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, "Send Apple Push notification\n")
		fmt.Fprintf(os.Stderr, "%s [-params] <token> [<token2> [...]]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	log.SetFlags(0)

	if *verbose {
		apns.LogLevel = apns.LogDebug
	}
	if flag.NArg() < 1 {
		log.Fatalln("Error: no tokens")
	}

	var config *apns.Config
	if *configFileName != "" {
		var err error
		if config, err = apns.LoadConfig(*configFileName); err != nil {
			log.Fatalln("Error loading config:", err)
		}
	} else {
		config = &apns.Config{
			CertFile: *certFileName,
			KeyFile:  *keyFileName,
			CAPath:   *caPath,
			Sandbox:  *development,
		}
	}
	if *p12FileName != "" {
		cert, err := apns.LoadCertificate(*p12FileName, *password)
		if err != nil {
			log.Fatalln("Error loading certificate:", err)
		}
		config.Certificate = cert
	}

	engine := apns.NewPushEngine(config)
	defer engine.Close()
	for _, token := range flag.Args() {
		msg := apns.NewMessage(token, *alert)
		msg.Sandbox = config.Sandbox
		msg.BadgeNumber = *badge
		msg.SoundName = *sound
		engine.Add(msg)
	}

	// tick until the queue drains, then once more for the idle-connection and
	// expiry sweeps; responses are only read right after a write
	for engine.SendQueueSize() > 0 {
		engine.Run()
		time.Sleep(100 * time.Millisecond)
	}
	engine.Run()
	log.Println("Complete!")
}
