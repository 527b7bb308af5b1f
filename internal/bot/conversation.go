// Package bot implements the hello-bot conversation: a per-room finite
// state machine driven by an interactions table, and the webhook handler
// that feeds it.
package bot

import (
	"math/rand/v2"
	"slices"
	"strings"
)

// State is the position of a conversation.
type State int

const (
	// Greeting waits for a message naming a topic keyword.
	Greeting State = iota

	// AwaitingConfirmation has asked a diagnostic prompt and waits for
	// yes or no.
	AwaitingConfirmation

	// AwaitingFollowup has offered solutions and asks whether they helped.
	AwaitingFollowup

	// Closed has said goodbye. The next message starts over.
	Closed
)

func (s State) String() string {
	switch s {
	case Greeting:
		return "greeting"
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	case AwaitingFollowup:
		return "awaiting_followup"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conversation is the state of one room. The zero value is a fresh
// conversation in Greeting.
type Conversation struct {
	State State

	// Topic is the keyword the current diagnosis is about.
	Topic string

	// LastPrompt is the most recent diagnostic prompt sent.
	LastPrompt string

	// Used lists prompts already sent in this conversation.
	Used []string
}

// ReplyKind classifies a reply.
type ReplyKind string

const (
	ReplyPrompt   ReplyKind = "prompt"
	ReplySolution ReplyKind = "solution"
	ReplyAnother  ReplyKind = "another"
	ReplyGoodbye  ReplyKind = "goodbye"
	ReplyGeneric  ReplyKind = "generic"
)

// Reply is the bot's answer to one message. An empty Text sends nothing.
type Reply struct {
	Kind ReplyKind
	Text string
}

// Picker chooses one of several non-empty options.
type Picker func(options []string) string

// RandomPicker picks uniformly. It is safe for concurrent use.
func RandomPicker(options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[rand.IntN(len(options))]
}

// FirstPicker always picks the first option.
func FirstPicker(options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[0]
}

// Words normalizes a message into lowercase words without commas or
// periods.
func Words(text string) []string {
	text = strings.NewReplacer(",", "", ".", "", "!", "", "?", "").Replace(text)
	return strings.Fields(strings.ToLower(text))
}

// Step computes the next conversation and the reply for an incoming
// message. It does not modify conv.
func (in *Interactions) Step(conv Conversation, text string, pick Picker) (Conversation, Reply) {
	if pick == nil {
		pick = RandomPicker
	}
	words := Words(text)

	switch conv.State {
	case AwaitingConfirmation:
		switch firstAnswer(words) {
		case KeyYes:
			return in.nextPrompt(conv, pick)
		case "no":
			return in.offerSolutions(conv)
		}

	case AwaitingFollowup:
		switch firstAnswer(words) {
		case KeyYes:
			return Conversation{State: Greeting}, in.reply(ReplyAnother, KeyAnother, pick)
		case "no":
			return Conversation{State: Closed}, in.reply(ReplyGoodbye, KeyGoodbye, pick)
		}

	case Closed:
		conv = Conversation{}
	}

	if next, reply, ok := in.startTopic(conv, words, pick); ok {
		return next, reply
	}
	return conv, in.reply(ReplyGeneric, KeyGeneric, pick)
}

// startTopic asks the first unused prompt of the first keyword in words.
func (in *Interactions) startTopic(conv Conversation, words []string, pick Picker) (Conversation, Reply, bool) {
	for _, word := range words {
		if !in.IsKeyword(word) {
			continue
		}
		prompt := pick(unused(in.prompts[word], conv.Used))
		if prompt == "" {
			continue
		}
		return Conversation{
			State:      AwaitingConfirmation,
			Topic:      word,
			LastPrompt: prompt,
			Used:       appendCopy(conv.Used, prompt),
		}, Reply{Kind: ReplyPrompt, Text: prompt}, true
	}
	return conv, Reply{}, false
}

// nextPrompt acknowledges a yes and asks another prompt on the same topic.
// With none left it moves on to the followup question.
func (in *Interactions) nextPrompt(conv Conversation, pick Picker) (Conversation, Reply) {
	prompt := pick(unused(in.prompts[conv.Topic], conv.Used))
	if prompt == "" {
		return in.offerSolutions(conv)
	}

	text := prompt
	if ack := pick(in.prompts[KeyYes]); ack != "" {
		text = ack + " " + prompt
	}

	return Conversation{
		State:      AwaitingConfirmation,
		Topic:      conv.Topic,
		LastPrompt: prompt,
		Used:       appendCopy(conv.Used, prompt),
	}, Reply{Kind: ReplyPrompt, Text: text}
}

// offerSolutions sends every solution for the last prompt followed by the
// next-query question.
func (in *Interactions) offerSolutions(conv Conversation) (Conversation, Reply) {
	parts := slices.Clone(in.solutions[conv.LastPrompt])
	parts = append(parts, in.prompts[KeyNextQuery]...)

	next := conv
	next.State = AwaitingFollowup
	next.Used = slices.Clone(conv.Used)

	return next, Reply{Kind: ReplySolution, Text: strings.Join(parts, " ")}
}

func (in *Interactions) reply(kind ReplyKind, key string, pick Picker) Reply {
	return Reply{Kind: kind, Text: pick(in.prompts[key])}
}

// firstAnswer returns the first "yes" or "no" in words.
func firstAnswer(words []string) string {
	for _, word := range words {
		if word == KeyYes || word == "no" {
			return word
		}
	}
	return ""
}

func unused(prompts, used []string) []string {
	var out []string
	for _, prompt := range prompts {
		if !slices.Contains(used, prompt) {
			out = append(out, prompt)
		}
	}
	return out
}

func appendCopy(s []string, v string) []string {
	out := make([]string, len(s), len(s)+1)
	copy(out, s)
	return append(out, v)
}
