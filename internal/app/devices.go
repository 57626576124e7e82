// ABOUTME: Device listing for the devices command
// ABOUTME: Prints playback devices and marks virtual cables and the default
package app

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Resonate-Protocol/cablecast/internal/device"
)

// ListDevices writes a table of playback devices to w
func ListDevices(w io.Writer, l *device.Lookup) error {
	infos, err := l.Outputs()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		_, err := fmt.Fprintln(w, "No playback devices found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tNAME\tNOTES")

	cables := 0
	for _, info := range infos {
		notes := ""
		if info.IsDefault {
			notes = "default"
		}
		if device.IsVirtualCable(info.Name) {
			cables++
			if notes != "" {
				notes += ", "
			}
			notes += "virtual cable"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", info.Index, info.Name, notes)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if cables == 0 {
		_, err = fmt.Fprintln(w, "\nNo virtual cable detected. Install VB-Audio Virtual Cable or BlackHole to route audio into call apps.")
		return err
	}
	return nil
}
