package models

// DiscordConfig represents Discord front end configuration
type DiscordConfig struct {
	Token         string `json:"-" yaml:"token"`
	CommandPrefix string `json:"command_prefix" yaml:"command_prefix"`
}

// DiscordStatus represents Discord service status
type DiscordStatus struct {
	Enabled       bool         `json:"enabled"`
	Status        string       `json:"status"`
	CommandPrefix string       `json:"command_prefix"`
	Uptime        string       `json:"uptime"`
	User          *DiscordUser `json:"user,omitempty"`
	Guilds        int          `json:"guilds,omitempty"`
}

// DiscordUser represents a Discord user
type DiscordUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
