package zwa

import (
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/golog"
	"log"
)

func (n *Network) WithGoLogger(parentLogger *log.Logger) {
	n.WithLogWrapLogger(logwrap.New(golog.Wrap(parentLogger)))
}

func (n *Network) WithLogWrapLogger(lw logwrap.Logger) {
	n.logger = lw
	n.poller.WithLogWrapLogger(lw)
}
