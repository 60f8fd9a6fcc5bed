package tlvframe

const crcPoly = 0x1021

// CRC16 is CRC16-CCITT (XModem): polynomial 0x1021, initial value 0,
// MSB first, no final xor.
func CRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ crcPoly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
