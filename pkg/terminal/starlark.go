package terminal

import (
	"github.com/jdsd/practice-tool/pkg/terminal/starbind"
	"github.com/jdsd/practice-tool/service/session"
)

type starlarkContext struct {
	term *Term
}

var _ starbind.Context = starlarkContext{}

func (ctx starlarkContext) Session() *session.Session {
	return ctx.term.sess
}

func (ctx starlarkContext) RegisterCommand(name, helpMsg string, fn func(args string) error) {
	cmdfn := func(t *Term, args string) error {
		return fn(args)
	}
	ctx.term.cmds.Register(name, cmdfn, helpMsg)
	ctx.term.names.Add(name, nil)
}

func (ctx starlarkContext) CallCommand(cmdstr string) error {
	return ctx.term.cmds.Call(cmdstr, ctx.term)
}
