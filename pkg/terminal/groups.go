package terminal

type commandGroup uint8

const (
	otherCmds commandGroup = iota
	featureCmds
	positionCmds
	memoryCmds
	bindingCmds
	scriptCmds
)

type commandGroupDescription struct {
	description string
	group       commandGroup
}

var commandGroupDescriptions = []commandGroupDescription{
	{"Features", featureCmds},
	{"Player position", positionCmds},
	{"Reading and writing memory", memoryCmds},
	{"Hotkeys and frames", bindingCmds},
	{"Commands defined by scripts", scriptCmds},
	{"Other commands", otherCmds},
}
