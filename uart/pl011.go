// Package uart drives a PL011 serial port for diagnostic output. The
// device is an explicit handle over an MMIO register window; nothing
// here lives in package-level state, so a boot can own exactly one
// instance and pass it to whatever needs to print.
package uart

// PL011 register offsets and bits
const (
	regDR    = 0x00 // data
	regFR    = 0x18 // flags
	frBusy   = 1 << 3
	regIBRD  = 0x24 // integer baud divisor
	regFBRD  = 0x28 // fractional baud divisor
	regLCR   = 0x2c // line control
	lcrFEN   = 1 << 4
	lcrSTP2  = 1 << 3
	regCR    = 0x30 // control
	crUartEn = 1 << 0
	crTxEn   = 1 << 8
	regIMSC  = 0x38 // interrupt mask
	regDMACR = 0x48 // DMA control
)

// MMIO is a 32-bit register window. Implementations are expected to
// behave like volatile device access: every call reaches the device.
type MMIO interface {
	Read32(off uint32) uint32
	Write32(off uint32, v uint32)
}

// PL011 is one configured serial port.
type PL011 struct {
	mmio      MMIO
	baseClock uint32
	baudrate  uint32
	dataBits  uint8
	stopBits  uint8
}

// New returns a handle for the PL011 behind mmio. 8 data bits, 1 stop
// bit. Call Configure before transmitting.
func New(mmio MMIO, baseClock, baudrate uint32) *PL011 {
	return &PL011{
		mmio:      mmio,
		baseClock: baseClock,
		baudrate:  baudrate,
		dataBits:  8,
		stopBits:  1,
	}
}

// divisor computes the PL011 baud rate divisor pair from the base clock.
// baud_div = 4 * clock / baud; the top bits go to IBRD, the low 6 to FBRD.
func divisor(clock, baud uint32) (ibrd, fbrd uint32) {
	div := 4 * clock / baud
	return (div >> 6) & 0xffff, div & 0x3f
}

// Configure runs the PL011 bring-up sequence: disable, drain TX, flush
// the FIFO, program the baud divisors, set the frame format, mask
// interrupts, disable DMA, then enable TX and the UART.
func (u *PL011) Configure() {
	u.mmio.Write32(regCR, crUartEn)
	for !u.ready() {
	}
	u.mmio.Write32(regLCR, ^uint32(lcrFEN))

	ibrd, fbrd := divisor(u.baseClock, u.baudrate)
	u.mmio.Write32(regIBRD, ibrd)
	u.mmio.Write32(regFBRD, fbrd)

	cfg := ((uint32(u.dataBits) - 1) & 0x3) << 5
	if u.stopBits == 2 {
		cfg |= lcrSTP2
	}
	u.mmio.Write32(regLCR, cfg)

	u.mmio.Write32(regIMSC, 0x0)
	u.mmio.Write32(regDMACR, 0x0)
	u.mmio.Write32(regCR, crTxEn|crUartEn)
}

func (u *PL011) ready() bool {
	return u.mmio.Read32(regFR)&frBusy == 0
}

// Putc transmits one byte, busy-polling until the device can take it.
// The hardware is assumed to always come ready eventually; there is no
// error path.
func (u *PL011) Putc(c byte) {
	for !u.ready() {
	}
	u.mmio.Write32(regDR, uint32(c))
}

// Write implements io.Writer so fmt and friends can print through the
// port. It cannot fail; bytes block until transmitted.
func (u *PL011) Write(p []byte) (int, error) {
	for _, c := range p {
		u.Putc(c)
	}
	return len(p), nil
}

func (u *PL011) Print(s string) {
	u.Write([]byte(s))
}

func (u *PL011) Println(s string) {
	u.Print(s)
	u.Putc('\n')
}
