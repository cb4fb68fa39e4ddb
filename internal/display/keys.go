package display

// KeySource is implemented by panels that also take keyboard input,
// like the terminal simulator.
type KeySource interface {
	Keys() <-chan rune
}
