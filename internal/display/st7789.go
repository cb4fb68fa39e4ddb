package display

import (
	"fmt"
	"image"
	"time"

	"periph.io/x/periph/conn/gpio"
)

// ST7789 commands
const (
	cmdSWRESET = 0x01
	cmdSLPOUT  = 0x11
	cmdNORON   = 0x13
	cmdINVON   = 0x21
	cmdDISPOFF = 0x28
	cmdDISPON  = 0x29
	cmdCASET   = 0x2a
	cmdRASET   = 0x2b
	cmdRAMWR   = 0x2c
	cmdMADCTL  = 0x36
	cmdCOLMOD  = 0x3a
)

// MADCTL bits
const (
	madRowOrder  = 0x80
	madColOrder  = 0x40
	madSwapXY    = 0x20
	madScanOrder = 0x10
)

// The 240x135 glass sits in the middle of the controller's 320x240 RAM.
const (
	colOffset        = 40
	rowOffset        = 53
	rowOffsetRotated = 52
)

// maxTxSize is the default spidev buffer size, larger writes are split
const maxTxSize = 4096

// tx is the part of spi.Conn the controller needs
type tx interface {
	Tx(w, r []byte) error
}

// st7789 is a 240x135 colour TFT, pixels are sent as big endian RGB565.
type st7789 struct {
	conn tx
	dc   gpio.PinOut
	// rst and bl are optional
	rst gpio.PinOut
	bl  gpio.PinOut

	madctl byte
	x0, y0 int
	buf    []byte
}

func newST7789(conn tx, dc, rst, bl gpio.PinOut, rotated bool) *st7789 {
	d := &st7789{
		conn:   conn,
		dc:     dc,
		rst:    rst,
		bl:     bl,
		madctl: madColOrder | madSwapXY | madScanOrder,
		x0:     colOffset,
		y0:     rowOffset,
		buf:    make([]byte, Width*Height*2),
	}
	if rotated {
		d.madctl ^= madRowOrder | madColOrder
		d.y0 = rowOffsetRotated
	}
	return d
}

// sleep is replaced in tests
var sleep = time.Sleep

func (d *st7789) init() error {
	if d.rst != nil {
		for _, l := range []gpio.Level{gpio.High, gpio.Low, gpio.High} {
			if err := d.rst.Out(l); err != nil {
				return fmt.Errorf("st7789: reset failed: %v", err)
			}
			sleep(10 * time.Millisecond)
		}
	}

	seq := []struct {
		cmd   byte
		data  []byte
		pause time.Duration
	}{
		{cmd: cmdSWRESET, pause: 150 * time.Millisecond},
		{cmd: cmdSLPOUT, pause: 120 * time.Millisecond},
		{cmd: cmdCOLMOD, data: []byte{0x55}},
		{cmd: cmdMADCTL, data: []byte{d.madctl}},
		{cmd: cmdINVON},
		{cmd: cmdNORON},
		{cmd: cmdDISPON, pause: 100 * time.Millisecond},
	}
	for _, s := range seq {
		if err := d.command(s.cmd, s.data...); err != nil {
			return err
		}
		if s.pause > 0 {
			sleep(s.pause)
		}
	}

	if d.bl != nil {
		return d.bl.Out(gpio.High)
	}
	return nil
}

func (d *st7789) command(cmd byte, data ...byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := d.conn.Tx([]byte{cmd}, nil); err != nil {
		return fmt.Errorf("st7789: command %#x failed: %v", cmd, err)
	}
	if len(data) == 0 {
		return nil
	}
	return d.data(data)
}

func (d *st7789) data(b []byte) error {
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	for len(b) > 0 {
		n := len(b)
		if n > maxTxSize {
			n = maxTxSize
		}
		if err := d.conn.Tx(b[:n], nil); err != nil {
			return fmt.Errorf("st7789: data write failed: %v", err)
		}
		b = b[n:]
	}
	return nil
}

func (d *st7789) Show(f *Frame) error {
	encode(d.buf, f.Image)

	x0, y0 := d.x0, d.y0
	x1, y1 := x0+Width-1, y0+Height-1
	if err := d.command(cmdCASET, byte(x0>>8), byte(x0), byte(x1>>8), byte(x1)); err != nil {
		return err
	}
	if err := d.command(cmdRASET, byte(y0>>8), byte(y0), byte(y1>>8), byte(y1)); err != nil {
		return err
	}
	if err := d.command(cmdRAMWR); err != nil {
		return err
	}
	return d.data(d.buf)
}

// Close switches the panel and the backlight off.
func (d *st7789) Close() error {
	err := d.command(cmdDISPOFF)
	if d.bl != nil {
		if berr := d.bl.Out(gpio.Low); err == nil {
			err = berr
		}
	}
	return err
}

// encode packs the Width x Height canvas into buf as RGB565
func encode(buf []byte, img *image.RGBA) {
	i := 0
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			c := img.RGBAAt(x, y)
			v := uint16(c.R&0xf8)<<8 | uint16(c.G&0xfc)<<3 | uint16(c.B)>>3
			buf[i] = byte(v >> 8)
			buf[i+1] = byte(v)
			i += 2
		}
	}
}
