// Generate an APNS configuration file from a certificate pair.
//
// The certificate and key are validated against each other and inspected
// before the configuration is written.
//
//	./config -c cert.pem -k key.pem [-ca dir] [-t] [-o apns.yaml]
package main

import (
	"crypto/tls"
	"flag"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/omnidynmc/apns"
)

type configFile struct {
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	CertFile string `yaml:"certFile"`
	KeyFile  string `yaml:"keyFile"`
	CAPath   string `yaml:"caPath,omitempty"`
	Timeout  string `yaml:"timeout,omitempty"`
	Sandbox  bool   `yaml:"sandbox,omitempty"`
}

func main() {
	certFileName := flag.String("c", "cert.pem", "client `certificate` (PEM)")
	keyFileName := flag.String("k", "key.pem", "private `key` (PEM)")
	caPath := flag.String("ca", "", "`directory` of trusted CA certificates")
	development := flag.Bool("t", false, "sandbox environment")
	timeout := flag.String("timeout", "5m", "idle connection `timeout`")
	output := flag.String("o", "apns.yaml", "output `file`")
	flag.Parse()
	log.SetFlags(0)

	cert, err := tls.LoadX509KeyPair(*certFileName, *keyFileName)
	if err != nil {
		log.Fatalln("Error loading certificate pair:", err)
	}
	summary, err := apns.SummarizeCertificate(cert)
	if err != nil {
		log.Fatalln("Error inspecting certificate:", err)
	}
	log.Println("Certificate:", summary)
	if summary.Expired() {
		log.Fatalln("Error: certificate is expired")
	}

	data, err := yaml.Marshal(&configFile{
		CertFile: *certFileName,
		KeyFile:  *keyFileName,
		CAPath:   *caPath,
		Timeout:  *timeout,
		Sandbox:  *development,
	})
	if err != nil {
		log.Fatalln("Error:", err)
	}
	if err = os.WriteFile(*output, data, 0o600); err != nil {
		log.Fatalln("Error writing config:", err)
	}
	log.Println("Wrote", *output)
}
