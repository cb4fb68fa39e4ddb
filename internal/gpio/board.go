package gpio

// Board groups the inputs and outputs of the device.
type Board struct {
	A   Button
	B   Button
	LED LED
}
