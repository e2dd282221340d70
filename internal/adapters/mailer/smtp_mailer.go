package mailer

import (
	"context"
	"fmt"

	"github.com/JoniWarrior/Auction-System-Backend/internal/config"
	"github.com/JoniWarrior/Auction-System-Backend/internal/ports/outbound"

	"github.com/rs/zerolog"
	gomail "gopkg.in/gomail.v2"
)

// SMTPMailer sends outbid notifications over plain SMTP
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
	logger zerolog.Logger
}

type SMTPMailerParams struct {
	Config *config.Config
	Logger zerolog.Logger
}

func NewSMTPMailer(params SMTPMailerParams) *SMTPMailer {
	cfg := params.Config.SMTP
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: params.Logger.With().Str("component", "smtp_mailer").Logger(),
	}
}

// SendOutbidEmail notifies a superseded bidder by email
func (m *SMTPMailer) SendOutbidEmail(ctx context.Context, to string, data outbound.OutbidEmail) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", fmt.Sprintf("You have been outbid in %s", data.AuctionTitle))
	msg.SetBody("text/html", fmt.Sprintf(
		"<p>A new bid of <b>%s</b> has been placed in <b>%s</b>, topping yours.</p>"+
			"<p>Your payment hold has been released. Place a new bid to get back in the race.</p>",
		data.NewBidAmount.StringFixed(2), data.AuctionTitle))

	if err := m.dialer.DialAndSend(msg); err != nil {
		m.logger.Error().Err(err).Str("to", to).Msg("Failed to send outbid email")
		return fmt.Errorf("failed to send outbid email: %w", err)
	}

	m.logger.Info().Str("to", to).Str("auction_title", data.AuctionTitle).Msg("Outbid email sent")
	return nil
}
