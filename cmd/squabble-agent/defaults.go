package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)
	viper.SetDefault("trace", false)

	viper.SetDefault("state_dir", defaultStateDir())

	viper.SetDefault("trigger.keywords", []string{"@squabble", "/squabble"})
	viper.SetDefault("trigger.context_window", 5*time.Minute)
	viper.SetDefault("session.state_timeout", 60*time.Second)
	viper.SetDefault("session.max_context_messages", 5)

	viper.SetDefault("mesh.listen_addrs", []string{
		"/ip4/0.0.0.0/tcp/0",
		"/ip4/0.0.0.0/udp/0/quic-v1",
	})
	viper.SetDefault("mesh.bootstrap_peers", []string{})

	viper.SetDefault("llm.endpoint", "")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("agent.history_max", 20)

	viper.SetDefault("audit.enabled", true)
	viper.SetDefault("audit.path", "")
	viper.SetDefault("audit.rotate_max_bytes", int64(10*1024*1024))

	viper.SetDefault("persona.path", "")
	viper.SetDefault("welcome.delay", 3*time.Second)

	viper.SetDefault("server.bind", "127.0.0.1")
	viper.SetDefault("server.port", 3000)
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".squabble-agent"
	}
	return filepath.Join(home, ".squabble-agent")
}
