// Package telegram forwards messages to a Telegram channel.
package telegram

import (
	"context"
	"strconv"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/juju/loggo"
	"golang.org/x/time/rate"
)

var logger = loggo.GetLogger("main.telegram")

// MaxSendDurr configures the limiter to send at most 1 message per MaxSendDurr
var MaxSendDurr = 500 * time.Millisecond

const (
	maxMessageSize = 4096 // https://github.com/yagop/node-telegram-bot-api/issues/165
	postfixLength  = 4    // " (n)"
	maxParts       = 9
	queueSize      = 64
)

type message struct {
	text   string
	silent bool
}

type Bot struct {
	ctx       context.Context
	channelID int64
	send      func(tgbotapi.Chattable) error
	limiter   *rate.Limiter
	queue     chan message
}

func New(ctx context.Context, token string, channelID int64) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	logger.Debugf("authorized as %v", api.Self.UserName)

	send := func(c tgbotapi.Chattable) error {
		_, err := api.Send(c)
		return err
	}
	return newBot(ctx, channelID, send), nil
}

func newBot(ctx context.Context, channelID int64, send func(tgbotapi.Chattable) error) *Bot {
	return &Bot{
		ctx:       ctx,
		channelID: channelID,
		send:      send,
		// limit message spam to once every MaxSendDurr
		limiter: rate.NewLimiter(rate.Every(MaxSendDurr), 1),
		queue:   make(chan message, queueSize),
	}
}

// Send sends a message to the channel, optionally sending notifications depending on disableNotification.
// Long messages are split into numbered parts, internally ratelimited to once every MaxSendDurr.
func (t *Bot) Send(txt string, disableNotification bool) error {
	for _, part := range chunks(txt, maxMessageSize) {
		if err := t.limiter.Wait(t.ctx); err != nil {
			return err
		}

		msg := tgbotapi.NewMessage(t.channelID, part)
		msg.DisableNotification = disableNotification
		if err := t.send(msg); err != nil {
			return err
		}
	}
	return nil
}

// Queue schedules txt for sending without blocking,
// the message is dropped when the queue is full.
func (t *Bot) Queue(txt string, disableNotification bool) {
	select {
	case t.queue <- message{text: txt, silent: disableNotification}:
	default:
	}
}

// Run sends the queued messages until the context is cancelled.
func (t *Bot) Run() error {
	for {
		select {
		case <-t.ctx.Done():
			return nil
		case m := <-t.queue:
			if err := t.Send(m.text, m.silent); err != nil && t.ctx.Err() == nil {
				// logging here would queue yet another message
				logger.Tracef("bot send error: %v", err)
			}
		}
	}
}

// chunks splits txt into at most maxParts messages of at most size bytes,
// numbering them when there is more than one. The rest is dropped.
func chunks(txt string, size int) []string {
	if len(txt) <= size {
		return []string{txt}
	}

	var parts []string
	for i := 1; len(txt) > 0 && i <= maxParts; i++ {
		end := size - postfixLength
		if end > len(txt) {
			end = len(txt)
		}
		// do not cut a multi-byte character in half
		for end < len(txt) && end > 0 && !utf8.RuneStart(txt[end]) {
			end--
		}

		parts = append(parts, txt[:end]+" ("+strconv.Itoa(i)+")")
		txt = txt[end:]
	}
	return parts
}
