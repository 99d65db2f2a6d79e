package galois

// primitivePolynomials holds, for every width, a primitive polynomial of
// degree w including its leading term.
var primitivePolynomials = [33]uint64{
	0,
	03,           // 1
	07,           // 2
	013,          // 3
	023,          // 4
	045,          // 5
	0103,         // 6
	0211,         // 7
	0435,         // 8
	01021,        // 9
	02011,        // 10
	04005,        // 11
	010123,       // 12
	020033,       // 13
	042103,       // 14
	0100003,      // 15
	0210013,      // 16
	0400011,      // 17
	01000201,     // 18
	02000047,     // 19
	04000011,     // 20
	010000005,    // 21
	020000003,    // 22
	040000041,    // 23
	0100000207,   // 24
	0200000011,   // 25
	0400000107,   // 26
	01000000047,  // 27
	02000000011,  // 28
	04000000005,  // 29
	010040000007, // 30
	020000000011, // 31
	040020000007, // 32
}

// PrimitivePolynomial returns the primitive polynomial used for GF(2^w),
// including the x^w term. It returns 0 for widths outside [1, 32].
func PrimitivePolynomial(w int) uint64 {
	if w < 1 || w > 32 {
		return 0
	}
	return primitivePolynomials[w]
}
