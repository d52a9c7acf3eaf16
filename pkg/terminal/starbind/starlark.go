// Package starbind exposes the practice tool to starlark scripts.
package starbind

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"

	startime "go.starlark.net/lib/time"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"

	"github.com/jdsd/practice-tool/pkg/proc"
	"github.com/jdsd/practice-tool/service/session"
)

const (
	commandBuiltinName  = "command"
	toggleBuiltinName   = "toggle"
	setBuiltinName      = "set_feature"
	stateBuiltinName    = "state"
	featuresBuiltinName = "features"
	savePosBuiltinName  = "save_pos"
	loadPosBuiltinName  = "load_pos"
	nudgeBuiltinName    = "nudge"
	positionBuiltinName = "position"
	quitoutBuiltinName  = "quitout"
	igtBuiltinName      = "igt"
	readBuiltinName     = "read"
	writeBuiltinName    = "write"
	helpBuiltinName     = "help"
	commandPrefix       = "command_"
	contextName         = "ptool_context"
)

func init() {
	resolve.AllowSet = true
	resolve.AllowRecursion = true
	resolve.AllowGlobalReassign = true
}

// Context is the context in which starlark scripts are evaluated.
type Context interface {
	Session() *session.Session
	RegisterCommand(name, helpMsg string, cmdfn func(args string) error)
	CallCommand(cmdstr string) error
}

// Env is the environment used to evaluate starlark scripts.
type Env struct {
	env       starlark.StringDict
	doc       map[string]string
	contextMu sync.Mutex
	thread    *starlark.Thread
	cancelfn  context.CancelFunc

	ctx Context
	out io.Writer
}

type builtinFn func(thread *starlark.Thread, args starlark.Tuple) (starlark.Value, error)

// New creates a new starlark binding environment.
func New(ctx Context, out io.Writer) *Env {
	env := &Env{ctx: ctx, out: out, doc: map[string]string{}}
	if env.out == nil {
		env.out = os.Stdout
	}

	// Make the "time" module available to Starlark scripts.
	starlark.Universe["time"] = startime.Module

	env.env = starlark.StringDict{}

	builtin := func(name, args, descr string, fn builtinFn) {
		env.env[name] = starlark.NewBuiltin(name, func(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := isCancelled(thread); err != nil {
				return starlark.None, err
			}
			if len(kwargs) > 0 {
				return nil, decorateError(thread, fmt.Errorf("%s does not take keyword arguments", name))
			}
			v, err := fn(thread, args)
			if err != nil {
				return nil, decorateError(thread, err)
			}
			return v, nil
		})
		env.doc[name] = name + args + "\n\n" + name + " " + descr
	}

	builtin(commandBuiltinName, "(Command)", "runs a console command.", func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
		argstrs := make([]string, len(args))
		for i := range args {
			a, ok := args[i].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("argument of %s is not a string", commandBuiltinName)
			}
			argstrs[i] = string(a)
		}
		return starlark.None, env.ctx.CallCommand(strings.Join(argstrs, " "))
	})

	builtin(featuresBuiltinName, "()", "returns the names of the enabled features.", func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
		if len(args) != 0 {
			return nil, errWrongArgs
		}
		fs := env.ctx.Session().Store().Features()
		r := make([]starlark.Value, len(fs))
		for i := range fs {
			r[i] = starlark.String(fs[i].Name)
		}
		return starlark.NewList(r), nil
	})

	builtin(toggleBuiltinName, "(Name)", "flips a feature and returns its new state.", func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
		name, err := stringArg(args, 1)
		if err != nil {
			return nil, err
		}
		on, err := env.ctx.Session().Store().Toggle(name)
		if err != nil {
			return nil, err
		}
		return starlark.Bool(on), nil
	})

	builtin(setBuiltinName, "(Name, On)", "turns a feature on or off and returns True if it was written.", func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
		if len(args) != 2 {
			return nil, errWrongArgs
		}
		name, ok := args[0].(starlark.String)
		if !ok {
			return nil, fmt.Errorf("first argument of %s is not a string", setBuiltinName)
		}
		f, err := env.ctx.Session().Store().Feature(string(name))
		if err != nil {
			return nil, err
		}
		return starlark.Bool(f.Set(bool(args[1].Truth()))), nil
	})

	builtin(stateBuiltinName, "(Name)", "returns the state of a feature, or None if its memory can not be resolved.", func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
		name, err := stringArg(args, 1)
		if err != nil {
			return nil, err
		}
		f, err := env.ctx.Session().Store().Feature(name)
		if err != nil {
			return nil, err
		}
		on, valid := f.State()
		if !valid {
			return starlark.None, nil
		}
		return starlark.Bool(on), nil
	})

	builtin(savePosBuiltinName, "()", "saves the player position.", func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
		if len(args) != 0 {
			return nil, errWrongArgs
		}
		return starlark.Bool(env.ctx.Session().Store().Position().Save()), nil
	})

	builtin(loadPosBuiltinName, "()", "moves the player to the saved position.", func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
		if len(args) != 0 {
			return nil, errWrongArgs
		}
		return starlark.Bool(env.ctx.Session().Store().Position().Load()), nil
	})

	builtin(nudgeBuiltinName, "(Distance)", "moves the player vertically.", func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
		if len(args) != 1 {
			return nil, errWrongArgs
		}
		dy, ok := starlark.AsFloat(args[0])
		if !ok {
			return nil, fmt.Errorf("argument of %s is not a number", nudgeBuiltinName)
		}
		return starlark.Bool(env.ctx.Session().Store().Position().Nudge(float32(dy))), nil
	})

	builtin(positionBuiltinName, "()", `returns a dict with the "live" and "saved" positions; either is None when unavailable.`, func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
		if len(args) != 0 {
			return nil, errWrongArgs
		}
		snap := env.ctx.Session().Store().Position().Snapshot()
		d := starlark.NewDict(2)
		var live, saved starlark.Value = starlark.None, starlark.None
		if snap.LiveValid {
			live = vecValue(snap.Live[:])
		}
		if snap.HasSaved {
			saved = vecValue(snap.Saved[:])
		}
		if err := d.SetKey(starlark.String("live"), live); err != nil {
			return nil, err
		}
		if err := d.SetKey(starlark.String("saved"), saved); err != nil {
			return nil, err
		}
		return d, nil
	})

	builtin(quitoutBuiltinName, "()", "requests a quitout.", func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
		if len(args) != 0 {
			return nil, errWrongArgs
		}
		return starlark.Bool(env.ctx.Session().Store().Quitout()), nil
	})

	builtin(igtBuiltinName, "()", "returns the in-game time in milliseconds.", func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
		if len(args) != 0 {
			return nil, errWrongArgs
		}
		return starlark.MakeInt64(env.ctx.Session().Store().IGT().Milliseconds()), nil
	})

	builtin(readBuiltinName, "(Type, Base, *Offsets)", "resolves a pointer chain and returns the value it points to, or None.", func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
		if len(args) < 2 {
			return nil, errWrongArgs
		}
		k, err := kindArg(args[0])
		if err != nil {
			return nil, err
		}
		base, offsets, err := chainArgs(args[1:])
		if err != nil {
			return nil, err
		}
		v, _, ok := proc.ReadValue(env.ctx.Session().Memory(), k, base, offsets...)
		if !ok {
			return starlark.None, nil
		}
		return toStarlarkValue(v), nil
	})

	builtin(writeBuiltinName, "(Type, Value, Base, *Offsets)", "resolves a pointer chain and stores Value there, returns True if it was written.", func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
		if len(args) < 3 {
			return nil, errWrongArgs
		}
		k, err := kindArg(args[0])
		if err != nil {
			return nil, err
		}
		v, err := fromStarlarkValue(args[1])
		if err != nil {
			return nil, err
		}
		base, offsets, err := chainArgs(args[2:])
		if err != nil {
			return nil, err
		}
		ok, err := proc.WriteValue(env.ctx.Session().Memory(), k, v, base, offsets...)
		if err != nil {
			return nil, err
		}
		return starlark.Bool(ok), nil
	})

	env.env[helpBuiltinName] = starlark.NewBuiltin(helpBuiltinName, func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		switch len(args) {
		case 0:
			fmt.Fprintln(env.out, "Available builtins:")
			bins := make([]string, 0, len(env.env))
			for name, value := range env.env {
				switch value.(type) {
				case *starlark.Builtin:
					bins = append(bins, name)
				}
			}
			sort.Strings(bins)
			for _, bin := range bins {
				fmt.Fprintf(env.out, "\t%s\n", bin)
			}
		case 1:
			switch x := args[0].(type) {
			case *starlark.Builtin:
				if env.doc[x.Name()] != "" {
					fmt.Fprintf(env.out, "%s\n", env.doc[x.Name()])
				} else {
					fmt.Fprintf(env.out, "no help for builtin %s\n", x.Name())
				}
			case *starlark.Function:
				fmt.Fprintf(env.out, "user defined function %s\n", x.Name())
				if doc := x.Doc(); doc != "" {
					fmt.Fprintln(env.out, doc)
				}
			default:
				fmt.Fprintf(env.out, "no help for object of type %T\n", args[0])
			}
		default:
			fmt.Fprintln(env.out, "wrong number of arguments ", len(args))
		}
		return starlark.None, nil
	})
	env.doc[helpBuiltinName] = helpBuiltinName + "(Object)\n\n" + helpBuiltinName + " prints help for Object."

	return env
}

// Redirect redirects starlark output to out.
func (env *Env) Redirect(out io.Writer) {
	env.out = out
	if env.thread != nil {
		env.thread.Print = env.printFunc()
	}
}

func (env *Env) printFunc() func(_ *starlark.Thread, msg string) {
	return func(_ *starlark.Thread, msg string) { fmt.Fprintln(env.out, msg) }
}

// Execute executes a script. Path is the name of the file to execute and
// source is the source code to execute.
// Source can be either a []byte, a string or a io.Reader. If source is nil
// Execute will execute the file specified by 'path'.
// After the file is executed if a function named mainFnName exists it will be called, passing args to it.
func (env *Env) Execute(path string, source interface{}, mainFnName string, args []interface{}) (_ starlark.Value, _err error) {
	defer func() {
		err := recover()
		if err == nil {
			return
		}
		_err = fmt.Errorf("panic executing starlark script: %v", err)
		fmt.Fprintf(env.out, "panic executing starlark script: %v\n", err)
		for i := 0; ; i++ {
			pc, file, line, ok := runtime.Caller(i)
			if !ok {
				break
			}
			fname := "<unknown>"
			fn := runtime.FuncForPC(pc)
			if fn != nil {
				fname = fn.Name()
			}
			fmt.Fprintf(env.out, "%s\n\tin %s:%d\n", fname, file, line)
		}
	}()

	thread := env.newThread()
	globals, err := starlark.ExecFile(thread, path, source, env.env)
	if err != nil {
		return starlark.None, err
	}

	err = env.exportGlobals(globals)
	if err != nil {
		return starlark.None, err
	}

	return env.callMain(thread, globals, mainFnName, args)
}

// exportGlobals saves globals with a name starting with a capital letter
// into the environment and creates commands from globals with a name
// starting with "command_"
func (env *Env) exportGlobals(globals starlark.StringDict) error {
	for name, val := range globals {
		switch {
		case strings.HasPrefix(name, commandPrefix):
			err := env.createCommand(name, val)
			if err != nil {
				return err
			}
		case name[0] >= 'A' && name[0] <= 'Z':
			env.env[name] = val
		}
	}
	return nil
}

// Cancel cancels the execution of a currently running script or function.
func (env *Env) Cancel() {
	if env == nil {
		return
	}
	env.contextMu.Lock()
	if env.cancelfn != nil {
		env.cancelfn()
		env.cancelfn = nil
	}
	if env.thread != nil {
		env.thread.Cancel("user interrupt")
	}
	env.contextMu.Unlock()
}

func (env *Env) newThread() *starlark.Thread {
	thread := &starlark.Thread{
		Print: env.printFunc(),
	}
	env.contextMu.Lock()
	var ctx context.Context
	ctx, env.cancelfn = context.WithCancel(context.Background())
	env.thread = thread
	env.contextMu.Unlock()
	thread.SetLocal(contextName, ctx)
	return thread
}

func (env *Env) createCommand(name string, val starlark.Value) error {
	fnval, ok := val.(*starlark.Function)
	if !ok {
		return nil
	}

	name = name[len(commandPrefix):]

	helpMsg := fnval.Doc()
	if helpMsg == "" {
		helpMsg = "user defined"
	}

	if fnval.NumParams() == 1 {
		if p0, _ := fnval.Param(0); p0 == "args" {
			env.ctx.RegisterCommand(name, helpMsg, func(args string) error {
				_, err := starlark.Call(env.newThread(), fnval, starlark.Tuple{starlark.String(args)}, nil)
				return err
			})
			return nil
		}
	}

	env.ctx.RegisterCommand(name, helpMsg, func(args string) error {
		thread := env.newThread()
		argtuple := starlark.Tuple{}
		if strings.TrimSpace(args) != "" {
			argval, err := starlark.Eval(thread, "<input>", "("+args+",)", env.env)
			if err != nil {
				return err
			}
			argtuple = argval.(starlark.Tuple)
		}
		_, err := starlark.Call(thread, fnval, argtuple, nil)
		return err
	})
	return nil
}

// callMain calls the main function in globals, if one was defined.
func (env *Env) callMain(thread *starlark.Thread, globals starlark.StringDict, mainFnName string, args []interface{}) (starlark.Value, error) {
	if mainFnName == "" {
		return starlark.None, nil
	}
	mainval := globals[mainFnName]
	if mainval == nil {
		return starlark.None, nil
	}
	mainfn, ok := mainval.(*starlark.Function)
	if !ok {
		return starlark.None, fmt.Errorf("%s is not a function", mainFnName)
	}
	if mainfn.NumParams() != len(args) {
		return starlark.None, fmt.Errorf("wrong number of arguments for %s", mainFnName)
	}
	argtuple := make(starlark.Tuple, len(args))
	for i := range args {
		argtuple[i] = toStarlarkValue(args[i])
	}
	return starlark.Call(thread, mainfn, argtuple, nil)
}

func isCancelled(thread *starlark.Thread) error {
	if ctx, ok := thread.Local(contextName).(context.Context); ok {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

func decorateError(thread *starlark.Thread, err error) error {
	if err == nil {
		return nil
	}
	pos := thread.CallFrame(1).Pos
	if pos.Col > 0 {
		return fmt.Errorf("%s:%d:%d: %v", pos.Filename(), pos.Line, pos.Col, err)
	}
	return fmt.Errorf("%s:%d: %v", pos.Filename(), pos.Line, err)
}
