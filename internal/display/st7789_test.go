package display

import (
	"errors"
	"time"

	gc "gopkg.in/check.v1"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpiotest"
)

type lcdSuite struct {
	oldSleep func(time.Duration)
	dc, rst  *gpiotest.Pin
	bl       *gpiotest.Pin
	conn     *fakeSPI
}

var _ = gc.Suite(&lcdSuite{})

// command is one controller command with the data written after it
type command struct {
	cmd  byte
	data []byte
}

type fakeSPI struct {
	dc     *gpiotest.Pin
	writes [][]byte
	cmds   []command
	err    error
}

// Tx records the write as a command or as data depending on the dc pin
func (f *fakeSPI) Tx(w, r []byte) error {
	if f.err != nil {
		return f.err
	}
	b := append([]byte(nil), w...)
	f.writes = append(f.writes, b)
	if f.dc.L == gpio.Low {
		f.cmds = append(f.cmds, command{cmd: b[0]})
		return nil
	}
	last := &f.cmds[len(f.cmds)-1]
	last.data = append(last.data, b...)
	return nil
}

func (f *fakeSPI) sent() []byte {
	var out []byte
	for _, c := range f.cmds {
		out = append(out, c.cmd)
	}
	return out
}

func (f *fakeSPI) find(cmd byte) command {
	for _, c := range f.cmds {
		if c.cmd == cmd {
			return c
		}
	}
	return command{}
}

func (s *lcdSuite) SetUpTest(c *gc.C) {
	s.oldSleep = sleep
	sleep = func(time.Duration) {}

	s.dc = &gpiotest.Pin{N: "GPIO9"}
	s.rst = &gpiotest.Pin{N: "GPIO27"}
	s.bl = &gpiotest.Pin{N: "GPIO19"}
	s.conn = &fakeSPI{dc: s.dc}
}

func (s *lcdSuite) TearDownTest(c *gc.C) {
	sleep = s.oldSleep
}

func (s *lcdSuite) TestInit(c *gc.C) {
	d := newST7789(s.conn, s.dc, s.rst, s.bl, false)
	c.Assert(d.init(), gc.IsNil)

	c.Check(s.conn.sent(), gc.DeepEquals, []byte{
		cmdSWRESET, cmdSLPOUT, cmdCOLMOD, cmdMADCTL, cmdINVON, cmdNORON, cmdDISPON,
	})
	c.Check(s.conn.find(cmdCOLMOD).data, gc.DeepEquals, []byte{0x55})
	c.Check(s.conn.find(cmdMADCTL).data, gc.DeepEquals, []byte{0x70})
	c.Check(s.rst.L, gc.Equals, gpio.High)
	c.Check(s.bl.L, gc.Equals, gpio.High)
}

func (s *lcdSuite) TestInitWithoutOptionalPins(c *gc.C) {
	d := newST7789(s.conn, s.dc, nil, nil, false)
	c.Assert(d.init(), gc.IsNil)
	c.Check(s.conn.cmds, gc.HasLen, 7)
}

func (s *lcdSuite) TestShowWindowAndPixels(c *gc.C) {
	d := newST7789(s.conn, s.dc, nil, s.bl, false)

	scr := NewScreen(d)
	scr.SetPen(Black)
	scr.Clear()
	scr.img.SetRGBA(0, 0, Red)
	scr.img.SetRGBA(1, 0, Green)
	scr.img.SetRGBA(Width-1, Height-1, White)
	c.Assert(scr.Update(), gc.IsNil)

	c.Check(s.conn.sent(), gc.DeepEquals, []byte{cmdCASET, cmdRASET, cmdRAMWR})
	// 40..279 and 53..187 of the controller RAM
	c.Check(s.conn.find(cmdCASET).data, gc.DeepEquals, []byte{0, 40, 1, 23})
	c.Check(s.conn.find(cmdRASET).data, gc.DeepEquals, []byte{0, 53, 0, 187})

	px := s.conn.find(cmdRAMWR).data
	c.Assert(px, gc.HasLen, Width*Height*2)
	c.Check(px[0:4], gc.DeepEquals, []byte{0xf8, 0x00, 0x07, 0xe0})
	c.Check(px[4:6], gc.DeepEquals, []byte{0, 0})
	c.Check(px[len(px)-2:], gc.DeepEquals, []byte{0xff, 0xff})

	// the frame does not fit one spidev transfer
	for _, w := range s.conn.writes {
		c.Check(len(w) <= maxTxSize, gc.Equals, true)
	}
}

func (s *lcdSuite) TestRotated(c *gc.C) {
	d := newST7789(s.conn, s.dc, nil, nil, true)
	c.Assert(d.init(), gc.IsNil)
	c.Assert(d.Show(&Frame{Image: NewScreen(d).img}), gc.IsNil)

	c.Check(s.conn.find(cmdMADCTL).data, gc.DeepEquals, []byte{0xb0})
	c.Check(s.conn.find(cmdRASET).data, gc.DeepEquals, []byte{0, 52, 0, 186})
}

func (s *lcdSuite) TestClose(c *gc.C) {
	d := newST7789(s.conn, s.dc, nil, s.bl, false)
	c.Assert(d.init(), gc.IsNil)
	s.conn.cmds = nil

	c.Assert(d.Close(), gc.IsNil)
	c.Check(s.conn.sent(), gc.DeepEquals, []byte{cmdDISPOFF})
	c.Check(s.bl.L, gc.Equals, gpio.Low)
}

func (s *lcdSuite) TestWriteError(c *gc.C) {
	s.conn.err = errors.New("spi gone")
	d := newST7789(s.conn, s.dc, nil, nil, false)
	c.Check(d.init(), gc.ErrorMatches, "st7789: command 0x1 failed: spi gone")
}
