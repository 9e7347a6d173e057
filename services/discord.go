package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"queryrouter/models"
)

const (
	// DefaultCommandPrefix triggers the bot in channel messages.
	DefaultCommandPrefix = "!ask "

	discordMessageLimit = 2000
	discordChunkSize    = 1900
	discordAskTimeout   = 90 * time.Second
)

// DiscordService handles Discord bot interactions
type DiscordService struct {
	session       *discordgo.Session
	assistant     *Assistant
	commandPrefix string
	enabled       bool
	startTime     time.Time
	logger        zerolog.Logger
}

// NewDiscordService creates a new Discord service instance. Without a token
// the service stays disabled.
func NewDiscordService(cfg models.DiscordConfig, assistant *Assistant, logger zerolog.Logger) *DiscordService {
	commandPrefix := cfg.CommandPrefix
	if commandPrefix == "" {
		commandPrefix = DefaultCommandPrefix
	}

	service := &DiscordService{
		assistant:     assistant,
		commandPrefix: commandPrefix,
		startTime:     time.Now(),
		logger:        logger.With().Str("component", "discord").Logger(),
	}

	if cfg.Token == "" {
		service.logger.Info().Msg("Discord bot disabled: no bot token configured")
		return service
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		service.logger.Error().Err(err).Msg("error creating Discord session")
		return service
	}
	service.session = session

	session.AddHandler(func(s *discordgo.Session, event *discordgo.Ready) {
		service.logger.Info().
			Str("user", event.User.Username).
			Int("guilds", len(event.Guilds)).
			Msg("bot is online")
	})
	session.AddHandler(service.messageCreate)
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent

	service.enabled = true
	service.logger.Info().Str("prefix", commandPrefix).Msg("Discord service initialized")
	return service
}

// Start begins the Discord bot service
func (d *DiscordService) Start() error {
	if !d.enabled {
		return fmt.Errorf("discord service not enabled (missing bot token)")
	}
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("error opening Discord connection: %w", err)
	}
	d.logger.Info().Msgf("Discord bot started, use '%s<query>'", d.commandPrefix)
	return nil
}

// Stop closes the Discord bot connection
func (d *DiscordService) Stop() error {
	if d.session != nil {
		return d.session.Close()
	}
	return nil
}

func (d *DiscordService) messageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	query, ok := d.parseCommand(m.Content)
	if !ok {
		return
	}
	if query == "" {
		d.sendMessage(s, m.ChannelID, fmt.Sprintf("Please provide a query after `%s`", strings.TrimSpace(d.commandPrefix)))
		return
	}

	if err := s.ChannelTyping(m.ChannelID); err != nil {
		d.logger.Debug().Err(err).Msg("typing indicator failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), discordAskTimeout)
	defer cancel()

	requestID := uuid.NewString()
	resp, err := d.assistant.Ask(ctx, models.AskRequest{
		BaseRequest: models.BaseRequest{RequestID: requestID},
		Query:       query,
	})
	d.logger.Info().
		Str("request_id", requestID).
		Str("user", m.Author.Username).
		Str("channel", m.ChannelID).
		Str("intent", string(resp.Intent)).
		Msg("discord query")

	d.sendMessage(s, m.ChannelID, formatDiscordReply(resp, err))
}

// parseCommand strips the command prefix. ok is false for other messages.
func (d *DiscordService) parseCommand(content string) (string, bool) {
	prefix := strings.TrimSpace(d.commandPrefix)
	trimmed := strings.TrimSpace(content)
	if trimmed == prefix {
		return "", true
	}
	if !strings.HasPrefix(content, d.commandPrefix) {
		return "", false
	}
	return strings.TrimSpace(content[len(d.commandPrefix):]), true
}

// formatDiscordReply renders an assistant result as chat text.
func formatDiscordReply(resp models.AskResponse, err error) string {
	switch {
	case IsCode(err, ErrNoResults):
		return "No results found for that search."
	case err != nil:
		return "Search is unavailable right now, please try again later."
	}

	var b strings.Builder
	if resp.Answer != "" {
		b.WriteString(resp.Answer)
	}
	if len(resp.Sources) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\nSources:\n")
		}
		for i, source := range resp.Sources {
			fmt.Fprintf(&b, "[%d] %s <%s>\n", i+1, source.Title, source.SourceURL)
		}
	}
	if b.Len() == 0 {
		if resp.Intent == models.IntentSearch {
			return "Search found results, but no pages could be fetched."
		}
		return fmt.Sprintf("That looks like a question for an assistant (%s), but no model is configured.", resp.Intent)
	}
	return strings.TrimRight(b.String(), "\n")
}

// sendMessage sends a message to Discord, handling length limits
func (d *DiscordService) sendMessage(s *discordgo.Session, channelID, message string) {
	if len(message) <= discordMessageLimit {
		if _, err := s.ChannelMessageSend(channelID, message); err != nil {
			d.logger.Error().Err(err).Msg("error sending Discord message")
		}
		return
	}

	chunks := splitMessage(message, discordChunkSize)
	for i, chunk := range chunks {
		if i > 0 {
			chunk = "...continued:\n" + chunk
		}
		if i < len(chunks)-1 {
			chunk += "\n..."
		}
		if _, err := s.ChannelMessageSend(channelID, chunk); err != nil {
			d.logger.Error().Err(err).Int("chunk", i).Msg("error sending Discord message chunk")
		}
		// rate limit
		time.Sleep(200 * time.Millisecond)
	}
}

// splitMessage splits a message into chunks of at most maxLength bytes,
// preferring word boundaries and never cutting a UTF-8 sequence.
func splitMessage(message string, maxLength int) []string {
	if len(message) <= maxLength {
		return []string{message}
	}

	var chunks []string
	for len(message) > maxLength {
		splitIndex := maxLength
		for splitIndex > 0 && !isRuneStart(message[splitIndex]) {
			splitIndex--
		}
		if spaceIndex := strings.LastIndex(message[:splitIndex], " "); spaceIndex > maxLength/2 {
			splitIndex = spaceIndex
		}

		chunks = append(chunks, message[:splitIndex])
		message = strings.TrimPrefix(message[splitIndex:], " ")
	}
	if len(message) > 0 {
		chunks = append(chunks, message)
	}
	return chunks
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// IsEnabled returns whether the Discord service is enabled
func (d *DiscordService) IsEnabled() bool {
	return d.enabled
}

// GetStatus returns the current status of the Discord service
func (d *DiscordService) GetStatus() models.DiscordStatus {
	status := models.DiscordStatus{
		Enabled:       d.enabled,
		CommandPrefix: d.commandPrefix,
		Uptime:        time.Since(d.startTime).String(),
		Status:        "disabled",
	}
	if !d.enabled || d.session == nil {
		return status
	}

	status.Status = "initialized_not_started"
	if d.session.State != nil && d.session.State.User != nil {
		status.Status = "connected"
		status.User = &models.DiscordUser{
			ID:       d.session.State.User.ID,
			Username: d.session.State.User.Username,
		}
		status.Guilds = len(d.session.State.Guilds)
	}
	return status
}
