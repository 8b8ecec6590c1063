package panel

import (
	"olipi.org/driver/lirc"
	"olipi.org/driver/mpr121"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Host returns the Hardware of the board the process runs on.
func Host() Hardware {
	return Hardware{
		Init: func() error {
			_, err := host.Init()
			return err
		},
		Pin: func(name string) gpio.PinIn {
			p := gpioreg.ByName(name)
			if p == nil {
				return nil
			}
			return p
		},
		OpenTouch: func(bus string, addr uint16, irq gpio.PinIn) (TouchDevice, error) {
			d, err := mpr121.Open(bus, addr, irq)
			if err != nil {
				return nil, err
			}
			return d, nil
		},
		OpenSerial: lirc.OpenSerial,
	}
}
