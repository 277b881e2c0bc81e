package photon

import (
	"fmt"
	"strings"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
)

// QASM renders the BB84 circuit that Circuit evaluates as an OpenQASM 2.0
// program: one wire per qubit, with the sender's preparation, a barrier, the
// receiver's basis change and a measurement into the matching classical bit.
func QASM(bits, sendBases, recvBases bitmap.Dense) (string, error) {
	if err := checkSizes(bits, sendBases, recvBases); err != nil {
		return "", err
	}
	n := bits.Size()
	var b strings.Builder
	b.WriteString("OPENQASM 2.0;\n")
	b.WriteString("include \"qelib1.inc\";\n\n")
	fmt.Fprintf(&b, "qreg q[%d];\n", n)
	fmt.Fprintf(&b, "creg c[%d];\n\n", n)
	for i := 0; i < n; i++ {
		if bits.Get(i) {
			fmt.Fprintf(&b, "x q[%d];\n", i)
		}
		if sendBases.Get(i) {
			fmt.Fprintf(&b, "h q[%d];\n", i)
		}
	}
	if n > 0 {
		b.WriteString("barrier q;\n")
	}
	for i := 0; i < n; i++ {
		if recvBases.Get(i) {
			fmt.Fprintf(&b, "h q[%d];\n", i)
		}
		fmt.Fprintf(&b, "measure q[%d] -> c[%d];\n", i, i)
	}
	return b.String(), nil
}
