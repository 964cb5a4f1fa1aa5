// Package fight implements the chat command pitting two users against each other.
package fight

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/nb4mna/nb4mna/internal/api/nightbot"
	"github.com/nb4mna/nb4mna/internal/api/tatsumaki"
	"github.com/nb4mna/nb4mna/internal/logging"
	"github.com/nb4mna/nb4mna/internal/utils"

	"golang.org/x/sync/errgroup"
)

const (
	providerDiscord = "discord"
	providerTwitch  = "twitch"

	discordUserTemplate = "<@%d>"
)

var (
	discordMentionRegex = regexp.MustCompile(`<@(\d+)>`)
	twitchUserRegex     = regexp.MustCompile(`(?i)^@?[a-z0-9][a-z0-9_]{3,24}`)
)

// UserError is chat text answered to the user instead of a fight.
type UserError string

func (e UserError) Error() string { return string(e) }

const (
	ErrUnknownUser         UserError = "I don't recognise you"
	ErrNoDiscordTarget     UserError = "You haven't specified a user to fight. You have to mention them with an @."
	ErrNoTwitchTarget      UserError = "You haven't specified a user to fight."
	ErrUnsupportedProvider UserError = "Unsupported provider"
)

func isUserError(err error) bool {
	var userErr UserError
	return errors.As(err, &userErr)
}

// RankingFetcher returns the leaderboard ranking of a Discord user.
type RankingFetcher interface {
	GetGuildMemberRanking(ctx context.Context, userID uint64) (*tatsumaki.MemberRanking, error)
}

// Random picks integers in [0, n).
type Random interface {
	IntN(n int) int
}

type globalRandom struct{}

func (globalRandom) IntN(n int) int { return rand.IntN(n) }

// input describes the two fighters and their winning weights.
type input struct {
	sourceUser  string
	sourceScore int
	targetUser  string
	targetScore int
}

// Handler serves the fight command.
type Handler struct {
	rankings RankingFetcher
	phrases  *Phrases
	random   Random
}

// NewHandler creates a fight handler. A nil random uses math/rand.
func NewHandler(rankings RankingFetcher, phrases *Phrases, random Random) *Handler {
	if random == nil {
		random = globalRandom{}
	}
	return &Handler{
		rankings: rankings,
		phrases:  phrases,
		random:   random,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context()).WithField("component", "fight")

	query := r.URL.Query()
	if !query.Has("message") {
		utils.WritePlainText(w, http.StatusBadRequest, "missing query parameter: message")
		return
	}
	message := query.Get("message")

	data, err := nightbot.Parse(r.Header)
	if err != nil {
		logger.Warnf("Rejected request: %v", err)
		utils.WritePlainText(w, http.StatusBadRequest, err.Error())
		return
	}
	logger.Debugf("message=%q user=%+v", truncate(message, 40), data.User)

	in, err := h.parse(r.Context(), data, message)
	if err != nil {
		var apiErr *tatsumaki.APIError
		switch {
		case isUserError(err):
			logger.Error(err)
			utils.WritePlainText(w, http.StatusOK, err.Error())
		case errors.As(err, &apiErr):
			utils.WritePlainText(w, http.StatusOK, fmt.Sprintf("Tatsumaki API error: %s", apiErr))
		default:
			logger.Errorf("Failed to prepare fight: %v", err)
			utils.WritePlainText(w, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}

	logger.Infof("source_user=%s source_probability=%d target_user=%s target_probability=%d",
		in.sourceUser, in.sourceScore, in.targetUser, in.targetScore)

	utils.WritePlainText(w, http.StatusOK, h.outcome(r.Context(), in))
}

func (h *Handler) parse(ctx context.Context, data *nightbot.Data, message string) (*input, error) {
	switch data.User.Provider {
	case providerDiscord:
		return h.parseDiscord(ctx, data, message)
	case providerTwitch:
		return parseTwitch(data, message)
	default:
		return nil, ErrUnsupportedProvider
	}
}

func (h *Handler) parseDiscord(ctx context.Context, data *nightbot.Data, message string) (*input, error) {
	// Nickname mentions look like <@!123>.
	message = strings.ReplaceAll(message, "!", "")

	if data.User.ProviderID == "" {
		return nil, ErrUnknownUser
	}
	sourceID, err := strconv.ParseUint(data.User.ProviderID, 10, 64)
	if err != nil {
		return nil, ErrUnknownUser
	}

	match := discordMentionRegex.FindStringSubmatch(message)
	if match == nil {
		return nil, ErrNoDiscordTarget
	}
	targetID, err := strconv.ParseUint(match[1], 10, 64)
	if err != nil {
		return nil, ErrNoDiscordTarget
	}

	in := &input{
		sourceUser:  fmt.Sprintf(discordUserTemplate, sourceID),
		sourceScore: 1,
		targetUser:  fmt.Sprintf(discordUserTemplate, targetID),
		targetScore: 1,
	}
	if sourceID == targetID {
		return in, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ranking, err := h.rankings.GetGuildMemberRanking(gctx, sourceID)
		if err != nil {
			return err
		}
		in.sourceScore = ranking.Score
		return nil
	})
	g.Go(func() error {
		ranking, err := h.rankings.GetGuildMemberRanking(gctx, targetID)
		if err != nil {
			return err
		}
		in.targetScore = ranking.Score
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return in, nil
}

func parseTwitch(data *nightbot.Data, message string) (*input, error) {
	target := twitchUserRegex.FindString(message)
	if target == "" {
		return nil, ErrNoTwitchTarget
	}

	return &input{
		sourceUser:  data.User.Name,
		sourceScore: 1,
		targetUser:  target,
		targetScore: 1,
	}, nil
}

// outcome draws the winner, weighted by score, and describes the fight.
func (h *Handler) outcome(ctx context.Context, in *input) string {
	if in.sourceUser == in.targetUser {
		return fmt.Sprintf("%s fought with themselves and are now in a state of quantum superposition.", in.sourceUser)
	}

	if in.sourceScore == 0 {
		return fmt.Sprintf("%s, you're not in the leaderboard just yet, get some more XP and try fighting again later.", in.sourceUser)
	}

	if in.targetScore == 0 {
		return fmt.Sprintf("%s, you can't fight somebody with no experience at all. Shame on you!", in.sourceUser)
	}

	total := in.sourceScore + in.targetScore
	result := h.random.IntN(total) + 1
	probability := float64(in.sourceScore) / float64(total)
	isWin := result <= in.sourceScore

	verb := h.choice(h.phrases.Verbs)
	weapon := h.choice(h.phrases.Weapons)
	var conclusion string
	if isWin {
		conclusion = h.choice(h.phrases.Win) + "!"
	} else {
		conclusion = h.choice(h.phrases.Loss) + "."
	}

	logging.FromContext(ctx).WithField("component", "fight").Infof("result=%d is_win=%t", result, isWin)

	return fmt.Sprintf("%s %s %s with %s and %s (%.1f%% win chance)",
		in.sourceUser, verb, in.targetUser, weapon, conclusion, probability*100)
}

func (h *Handler) choice(list []string) string {
	return list[h.random.IntN(len(list))]
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
