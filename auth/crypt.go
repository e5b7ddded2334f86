package auth

// Traditional unix crypt(3) as used by crypt-password authentication: DES
// with a salt-perturbed expansion function, applied 25 times to an all-zero
// block using a key derived from the first eight password bytes. The output
// is the two salt characters followed by eleven characters of the crypt
// base64 alphabet.
//
// DES here follows the FIPS 46-3 tables in their textbook one-indexed form.
// The only departure from plain DES is the salt: each set bit i of the
// 12-bit salt swaps entries i and i+24 of the expansion table.

const cryptAlphabet = "./0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// CryptResponse computes the crypt(3) digest of password under the 2-byte
// salt carried by the authentication request. The result is the 13-byte
// printable digest.
func CryptResponse(password string, salt []byte) []byte {
	key := cryptKey(password)
	subkeys := keySchedule(key)
	etab := saltedExpansion(salt)

	var block uint64
	for i := 0; i < 25; i++ {
		block = encryptBlock(block, &subkeys, &etab)
	}

	out := make([]byte, 0, 13)
	out = append(out, salt[0], salt[1])
	for i := 0; i < 10; i++ {
		out = append(out, cryptAlphabet[(block>>(58-6*i))&0x3f])
	}
	return append(out, cryptAlphabet[(block&0xf)<<2])
}

// cryptKey packs the low seven bits of the first eight password bytes into
// the high bits of each key byte, zero-padding short passwords.
func cryptKey(password string) uint64 {
	var key uint64
	for i := 0; i < 8; i++ {
		var b byte
		if i < len(password) {
			b = password[i]
		}
		key = key<<8 | uint64(b<<1)
	}
	return key
}

// saltedExpansion returns the expansion table with the salt perturbation
// applied. Bits 0-5 of the salt come from the first character, 6-11 from
// the second; characters outside the alphabet contribute no swaps.
func saltedExpansion(salt []byte) [48]byte {
	etab := expansion
	for i := 0; i < 12; i++ {
		c := alphabetIndex(salt[i/6])
		if c>>(i%6)&1 == 1 {
			etab[i], etab[i+24] = etab[i+24], etab[i]
		}
	}
	return etab
}

func alphabetIndex(c byte) int {
	for i := 0; i < len(cryptAlphabet); i++ {
		if cryptAlphabet[i] == c {
			return i
		}
	}
	return 0
}

// keySchedule derives the sixteen 48-bit subkeys.
func keySchedule(key uint64) [16]uint64 {
	cd := permute(key, 64, permutedChoice1[:])
	c := uint32(cd >> 28)
	d := uint32(cd & 0xfffffff)
	var subkeys [16]uint64
	for i, rot := range rotations {
		c = (c<<rot | c>>(28-rot)) & 0xfffffff
		d = (d<<rot | d>>(28-rot)) & 0xfffffff
		subkeys[i] = permute(uint64(c)<<28|uint64(d), 56, permutedChoice2[:])
	}
	return subkeys
}

// encryptBlock runs one DES encryption of block under the subkeys, using
// the (possibly salt-perturbed) expansion table.
func encryptBlock(block uint64, subkeys *[16]uint64, etab *[48]byte) uint64 {
	v := permute(block, 64, initialPermutation[:])
	l := uint32(v >> 32)
	r := uint32(v)
	for _, k := range subkeys {
		l, r = r, l^feistel(r, k, etab)
	}
	// The preoutput swaps the halves.
	return permute(uint64(r)<<32|uint64(l), 64, finalPermutation[:])
}

func feistel(r uint32, subkey uint64, etab *[48]byte) uint32 {
	x := permute(uint64(r), 32, etab[:]) ^ subkey
	var out uint32
	for i := 0; i < 8; i++ {
		six := x >> (42 - 6*i) & 0x3f
		row := six>>4&2 | six&1
		col := six >> 1 & 0xf
		out = out<<4 | uint32(sBoxes[i][row][col])
	}
	return uint32(permute(uint64(out), 32, permutation[:]))
}

// permute builds an output value by selecting, for each table entry, the
// given one-indexed bit (counting from the most significant) of a value
// inBits wide.
func permute(v uint64, inBits uint, table []byte) uint64 {
	var out uint64
	for _, pos := range table {
		out = out<<1 | v>>(inBits-uint(pos))&1
	}
	return out
}
