// qkd negotiates keys with a simulated BB84 exchange and uses them to encrypt
// and decrypt short text messages with a repeating XOR cipher.
//
// Usage:
//
//	qkd [flags] demo [--message text] [--bits n]
//	qkd [flags] exchange --name key [--bits n]
//	qkd [flags] encrypt --name key --message text [--out file]
//	qkd [flags] decrypt [--name key] --in file
//	qkd [flags] circuit [--bits n]
//	qkd [flags] keys
package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

const defaultMessage = "Quantum Security!"

// commandFlags holds the per-command flags.
type commandFlags struct {
	configPath string
	name       string
	message    string
	bits       int
	in, out    string
}

func main() {
	fs := flag.NewFlagSet("qkd", flag.ExitOnError)
	cfg := defaultConfig()
	cfg.registerFlags(fs)
	var cf commandFlags
	fs.StringVar(&cf.configPath, "config", "", "Path of a YAML config file.")
	fs.StringVar(&cf.name, "name", "default", "Name of the stored key to use.")
	fs.StringVar(&cf.message, "message", defaultMessage, "Message to encrypt.")
	fs.IntVar(&cf.bits, "bits", 0, "Qubits to exchange. Zero picks a length from the command.")
	fs.StringVar(&cf.in, "in", "-", "Envelope to decrypt, or - for stdin.")
	fs.StringVar(&cf.out, "out", "-", "Where to write the envelope, or - for stdout.")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: qkd [flags] demo|exchange|encrypt|decrypt|circuit|keys")
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[1:])

	if err := loadConfig(fs, &cfg, cf.configPath); err != nil {
		log.WithError(err).Fatalln("Can't load config")
	}
	if err := setupLogging(cfg); err != nil {
		log.WithError(err).Fatalln("Can't configure logging")
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	log.WithField("seed", cfg.Seed).Debugln("Seeding randomness")
	r := rand.New(rand.NewSource(cfg.Seed))

	cmd := "demo"
	if fs.NArg() > 0 {
		cmd = fs.Arg(0)
	}
	var err error
	switch cmd {
	case "demo":
		err = runDemo(os.Stdout, cfg, r, cf.message, cf.bits)
	case "exchange":
		err = runExchange(os.Stdout, cfg, r, cf.name, cf.bits)
	case "encrypt":
		err = runEncrypt(cfg, cf.name, cf.message, cf.out)
	case "decrypt":
		name := ""
		if fs.Changed("name") {
			name = cf.name
		}
		err = runDecrypt(os.Stdout, cfg, name, cf.in)
	case "circuit":
		err = runCircuit(os.Stdout, r, cf.bits)
	case "keys":
		err = runKeys(os.Stdout, cfg)
	default:
		fs.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.WithError(err).WithField("command", cmd).Fatalln("Command failed")
	}
}
