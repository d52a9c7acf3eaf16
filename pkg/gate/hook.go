package gate

// Present is the host's frame presentation routine.
type Present func(syncInterval, flags uint32) int32

// Hook returns a present routine that runs the gate and then next, with
// the arguments and return value of next left untouched.
func (g *Gate) Hook(next Present) Present {
	return func(syncInterval, flags uint32) int32 {
		g.Frame()
		return next(syncInterval, flags)
	}
}

// Installer replaces the host's present routine with hook(original).
type Installer interface {
	Install(hook func(Present) Present) error
}

// Install installs g into the host from a separate goroutine and returns
// a channel receiving the result. The goroutine exits once the installer
// returns and shares no mutable state with the gate.
func Install(inst Installer, g *Gate) <-chan error {
	done := make(chan error, 1)
	go func() {
		err := inst.Install(g.Hook)
		if err != nil {
			g.log.WithError(err).Error("could not install present hook")
		}
		done <- err
	}()
	return done
}
