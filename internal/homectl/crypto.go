// Package homectl discovers and commands TP-Link Kasa smart plugs and
// bulbs over the local network. Devices speak JSON obfuscated with an XOR
// autokey cipher: UDP broadcast on port 9999 for discovery, TCP with a
// 4-byte length prefix for commands.
package homectl

// cipherSeed is the autokey initialization byte shared by every Kasa
// device.
const cipherSeed = 171

// encrypt applies the Kasa autokey cipher: each output byte is the
// previous ciphertext byte XORed with the next plaintext byte.
func encrypt(plain []byte) []byte {
	out := make([]byte, len(plain))
	key := byte(cipherSeed)
	for i, b := range plain {
		key ^= b
		out[i] = key
	}
	return out
}

// decrypt reverses encrypt. The keystream is the ciphertext itself, so
// decryption never needs the plaintext.
func decrypt(cipher []byte) []byte {
	out := make([]byte, len(cipher))
	key := byte(cipherSeed)
	for i, b := range cipher {
		out[i] = key ^ b
		key = b
	}
	return out
}
