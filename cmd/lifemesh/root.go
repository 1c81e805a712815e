package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/lifemesh/config"
)

// projectFlags are the flags shared by commands that prepare the project
// configuration. Flags that were set form the local configuration; the YAML
// file is the global one.
type projectFlags struct {
	file      string
	host      string
	port      int
	token     string
	rateLimit float64
	logLevel  string
	logFormat string
	session   string
	redisAddr string
	bridge    []string
}

func (f *projectFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.file, "config", "c", "lifemesh.yaml", "project configuration file")
	fs.StringVar(&f.host, "host", "", "listen host")
	fs.IntVarP(&f.port, "port", "p", 0, "listen port")
	fs.StringVar(&f.token, "token", "", "bearer token required by the server (default $"+config.EnvServerToken+")")
	fs.Float64Var(&f.rateLimit, "rate-limit", 0, "requests per second per client")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&f.logFormat, "log-format", "", "json or text")
	fs.StringVar(&f.session, "session", "", "session backend: memory or redis")
	fs.StringVar(&f.redisAddr, "redis-addr", "", "redis address for the redis session backend")
	fs.StringSliceVar(&f.bridge, "bridge", nil, "media bridge command")
}

// local returns the configuration given on the command line.
func (f *projectFlags) local(cmd *cobra.Command) map[string]any {
	changed := cmd.Flags().Changed
	section := func(m map[string]any, key string) map[string]any {
		s, ok := m[key].(map[string]any)
		if !ok {
			s = map[string]any{}
			m[key] = s
		}
		return s
	}

	local := map[string]any{}
	if changed("host") {
		section(local, "server")["host"] = f.host
	}
	if changed("port") {
		section(local, "server")["port"] = f.port
	}
	if changed("token") {
		section(local, "server")["token"] = f.token
	}
	if changed("rate-limit") {
		section(local, "server")["rateLimit"] = f.rateLimit
	}
	if changed("log-level") {
		section(local, "logging")["level"] = f.logLevel
	}
	if changed("log-format") {
		section(local, "logging")["format"] = f.logFormat
	}
	if changed("session") {
		section(local, "session")["backend"] = f.session
	}
	if changed("redis-addr") {
		section(local, "session")["redisAddr"] = f.redisAddr
	}
	if changed("bridge") {
		bridge := make([]any, len(f.bridge))
		for i, s := range f.bridge {
			bridge[i] = s
		}
		section(local, "bridge")["command"] = bridge
	}
	return local
}

// prepare runs the configuration pipeline.
func (f *projectFlags) prepare(cmd *cobra.Command) (*config.Prepared, error) {
	global, err := config.Load(f.file)
	if err != nil {
		return nil, err
	}
	return config.PrepareProject(f.local(cmd), global)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lifemesh",
		Short:         "Run always-on conversational agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newStartCmd(), newConfigCmd(), newEffectCmd())
	return root
}
