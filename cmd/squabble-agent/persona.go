package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// persona holds the bot's user-facing voice. Everything has a default so the
// file is optional.
type persona struct {
	SystemPrompt string `yaml:"system_prompt"`
	Welcome      string `yaml:"welcome"`
	HelpHint     string `yaml:"help_hint"`
	Apology      string `yaml:"apology"`
}

func defaultPersona() persona {
	return persona{
		SystemPrompt: "You are Squabble, a playful betting referee in a group chat. " +
			"Keep replies short and conversational. When you need more details to " +
			"set up a bet, ask one question at a time.",
		Welcome: "Hey, I'm Squabble! Mention @squabble to start a bet, " +
			"or just reply to my messages.",
		HelpHint: "Looking for me? Mention @squabble followed by what you want to do.",
		Apology:  "Sorry, something went wrong on my side. Please try again.",
	}
}

func loadPersona(path string) (persona, error) {
	p := defaultPersona()
	path = strings.TrimSpace(path)
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return p, fmt.Errorf("read persona %s: %w", path, err)
	}

	var loaded persona
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return p, fmt.Errorf("parse persona %s: %w", path, err)
	}
	if strings.TrimSpace(loaded.SystemPrompt) != "" {
		p.SystemPrompt = loaded.SystemPrompt
	}
	if strings.TrimSpace(loaded.Welcome) != "" {
		p.Welcome = loaded.Welcome
	}
	if strings.TrimSpace(loaded.HelpHint) != "" {
		p.HelpHint = loaded.HelpHint
	}
	if strings.TrimSpace(loaded.Apology) != "" {
		p.Apology = loaded.Apology
	}
	return p, nil
}
