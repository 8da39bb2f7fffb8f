package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"codeberg.org/mutker/hostwatch/internal/logger"
	"codeberg.org/mutker/hostwatch/internal/monitor"
	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff/v4"
)

const (
	defaultMaxRetries = 3
	commandBufferSize = 1
	footerName        = "hostwatch"
	statusTitlePrefix = "📊 Status"
	statusDescription = "Live system report"
	onlineMessage     = "✅ **hostwatch online**\n\nMonitoring started."
)

// session is the subset of *discordgo.Session used here.
type session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type DiscordConfig struct {
	Token         string
	Recipient     string
	CommandPrefix string
	Host          string
	MaxRetries    uint64
}

// Discord delivers direct messages to one user and accepts the status
// command from that user only.
type Discord struct {
	cfg        DiscordConfig
	session    session
	newBackOff func() backoff.BackOff
	now        func() time.Time

	mu        sync.Mutex
	channelID string
	closed    bool
	commands  chan Command
}

func NewDiscord(cfg DiscordConfig) (*Discord, error) {
	errFactory := errors.New()

	if cfg.Token == "" || cfg.Recipient == "" {
		return nil, errFactory.New(ErrMissingCredentials)
	}

	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, errFactory.Wrap(ErrSessionInit, err)
	}
	s.Identify.Intents = discordgo.IntentsDirectMessages

	return newDiscord(cfg, s), nil
}

func newDiscord(cfg DiscordConfig, s session) *Discord {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}

	d := &Discord{
		cfg:     cfg,
		session: s,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		now:      time.Now,
		commands: make(chan Command, commandBufferSize),
	}

	s.AddHandler(d.onReady)
	s.AddHandler(d.onMessage)

	return d
}

// Open connects to the gateway and greets the recipient. A failure to
// connect is returned; a failure to greet is only logged.
func (d *Discord) Open(ctx context.Context) error {
	if err := d.session.Open(); err != nil {
		return errors.New().Wrap(ErrSessionOpen, err)
	}

	logger.Info().
		Str("recipient", d.cfg.Recipient).
		Msg("Connected to Discord")

	err := d.deliver(ctx, func(channelID string) error {
		_, err := d.session.ChannelMessageSend(channelID, onlineMessage)
		return err
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to send startup message")
	}

	return nil
}

func (d *Discord) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.commands)
	d.mu.Unlock()

	if err := d.session.Close(); err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}

// Commands delivers authorised inbound commands. It is closed by Close.
func (d *Discord) Commands() <-chan Command {
	return d.commands
}

func (d *Discord) SendAlert(ctx context.Context, alert Alert) error {
	embed := &discordgo.MessageEmbed{
		Title:       alert.Title,
		Description: alert.Body,
		Color:       alert.Color,
		Timestamp:   alert.Timestamp.Format(time.RFC3339),
		Footer:      d.footer(),
	}

	err := d.deliver(ctx, func(channelID string) error {
		_, err := d.session.ChannelMessageSendEmbed(channelID, embed)
		return err
	})
	if err != nil {
		return err
	}

	logger.Info().Str("title", alert.Title).Str("body", alert.Body).Msg("Alert delivered")

	return nil
}

func (d *Discord) SendStatusReport(ctx context.Context, reading monitor.Reading) error {
	at := reading.Timestamp
	if at.IsZero() {
		at = d.now()
	}

	fields := StatusFields(reading)
	embed := &discordgo.MessageEmbed{
		Title:       statusTitlePrefix + " " + d.cfg.Host,
		Description: statusDescription,
		Color:       ColorNormal,
		Timestamp:   at.Format(time.RFC3339),
		Footer:      d.footer(),
		Fields:      make([]*discordgo.MessageEmbedField, 0, len(fields)),
	}
	for _, f := range fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: true})
	}

	return d.deliver(ctx, func(channelID string) error {
		_, err := d.session.ChannelMessageSendEmbed(channelID, embed)
		return err
	})
}

func (d *Discord) footer() *discordgo.MessageEmbedFooter {
	return &discordgo.MessageEmbedFooter{Text: footerName + " · " + d.cfg.Host}
}

// deliver resolves the DM channel and runs send with bounded retries.
func (d *Discord) deliver(ctx context.Context, send func(channelID string) error) error {
	op := func() error {
		channelID, err := d.dmChannel()
		if err != nil {
			return err
		}
		return send(channelID)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(d.newBackOff(), d.cfg.MaxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		logger.Debug().Err(err).Dur("retry_in", wait).Msg("Discord delivery failed, retrying")
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return errors.New().Wrap(ErrSendFailed, err)
	}

	return nil
}

func (d *Discord) dmChannel() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return "", backoff.Permanent(errors.New().New(ErrClosed))
	}
	if d.channelID != "" {
		return d.channelID, nil
	}

	ch, err := d.session.UserChannelCreate(d.cfg.Recipient)
	if err != nil {
		return "", errors.New().Wrap(ErrChannelFailed, err)
	}
	d.channelID = ch.ID

	return d.channelID, nil
}

func (d *Discord) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r.User != nil {
		logger.Info().Str("user", r.User.Username).Msg("Discord session ready")
	}
}

func (d *Discord) onMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil || m.Author == nil {
		return
	}

	cmd, ok := Authorize(m.Author.ID, m.Author.Bot, m.Content, d.cfg.Recipient, d.cfg.CommandPrefix)
	if !ok {
		return
	}
	cmd.ReceivedAt = d.now()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	select {
	case d.commands <- cmd:
		logger.Debug().Str("command", cmd.Name).Msg("Command received")
	default:
		logger.Debug().Str("command", cmd.Name).Msg("Command dropped, previous one still pending")
	}
}

// Authorize accepts content only when it is exactly the status command and
// comes from the recipient. Bots, including ourselves, are ignored.
func Authorize(authorID string, isBot bool, content, recipient, prefix string) (Command, bool) {
	if isBot || recipient == "" || authorID != recipient {
		return Command{}, false
	}
	if strings.TrimSpace(content) != prefix+CommandStatus {
		return Command{}, false
	}

	return Command{Name: CommandStatus}, true
}
