package read

var complement [256]byte

func init() {
	pairs := []string{"AT", "CG", "RY", "SS", "WW", "KM", "BV", "DH", "NN"}
	for _, p := range pairs {
		a, b := p[0], p[1]
		complement[a], complement[b] = b, a
		complement[a+'a'-'A'], complement[b+'a'-'A'] = b+'a'-'A', a+'a'-'A'
	}
}

// ReverseComplement returns the reverse complement of seq.
// Unknown symbols become N.
func ReverseComplement(seq []byte) []byte {
	n := len(seq)
	out := make([]byte, n)
	for i := range n {
		c := complement[seq[n-1-i]]
		if c == 0 {
			c = 'N'
		}
		out[i] = c
	}
	return out
}

// Reverse returns a reversed copy of b.
func Reverse(b []byte) []byte {
	n := len(b)
	out := make([]byte, n)
	for i := range n {
		out[i] = b[n-1-i]
	}
	return out
}
