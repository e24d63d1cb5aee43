package wsconfig

import (
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

const (
	DefaultListenAddr   = ":8080"
	DefaultPayloadLimit = 32 * 1024 * 1024
	DefaultWSVersion    = "13"
	ConfigFileFlag      = "config-file"
)

// Flags returns the CLI flags a host binary uses to configure the core:
// listen address, payload limit, and negotiated version, each layered
// flag > env var > TOML file, the same three-way precedence
// tzrikka-timpani/internal/thrippy.Flags builds with cli-altsrc.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "listen-addr",
			Usage: "address the demo WebSocket server listens on",
			Value: DefaultListenAddr,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("WSCORE_LISTEN_ADDR"),
				toml.TOML("server.listen_addr", configFilePath),
			),
		},
		&cli.IntFlag{
			Name:  "payload-limit",
			Usage: "maximum frame payload size in bytes",
			Value: DefaultPayloadLimit,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("WSCORE_PAYLOAD_LIMIT"),
				toml.TOML("server.payload_limit", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "ws-version",
			Usage: "required Sec-WebSocket-Version token",
			Value: DefaultWSVersion,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("WSCORE_VERSION"),
				toml.TOML("server.ws_version", configFilePath),
			),
		},
		&cli.BoolFlag{
			Name:  "pretty-log",
			Usage: "human-readable console logging instead of JSON",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("WSCORE_PRETTY_LOG"),
				toml.TOML("server.pretty_log", configFilePath),
			),
		},
	}
}

// ConfigFilePath wraps a path to the TOML config file as an
// altsrc.StringSourcer, mirroring tzrikka-timpani/cmd/timpani's
// configFile() helper (which additionally creates the file under the
// user's XDG config dir if missing; the demo binary here just takes a
// path directly and leaves file creation to the caller).
func ConfigFilePath(path string) altsrc.StringSourcer {
	return altsrc.StringSourcer(path)
}
