package game

import (
	"strconv"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/oqtopus-team/oqtopus-nonlocal/core"
)

// Program renders a measurement setting as an OpenQASM 3 program. Alice owns
// q[0] and c[0], Bob owns q[1] and c[1].
func Program(s core.MeasurementSetting) string {
	prep := ""
	if s.Entangled {
		prep = "h q[0];\ncx q[0], q[1];\n"
	}
	return heredoc.Docf(`
		OPENQASM 3.0;
		include "stdgates.inc";
		qubit[2] q;
		bit[2] c;
		%sbarrier q[0], q[1];
		ry(%s) q[0];
		c[0] = measure q[0];
		ry(%s) q[1];
		c[1] = measure q[1];
		`,
		prep, formatAngle(s.AliceAngle), formatAngle(s.BobAngle))
}

func formatAngle(v float64) string {
	return strconv.FormatFloat(v, 'g', 17, 64)
}
