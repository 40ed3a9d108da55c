package addrplan

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// Subnet calculates the netnum-th subnet of the given prefix after extending
// its mask by newbits. This mirrors Terraform's cidrsubnet function.
//
// Only IPv4 prefixes are supported.
func Subnet(prefix netip.Prefix, newbits, netnum int) (netip.Prefix, error) {
	if !prefix.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("only IPv4 prefixes are supported, got %s", prefix)
	}
	if newbits < 0 {
		return netip.Prefix{}, fmt.Errorf("newbits must be non-negative, got %d", newbits)
	}

	newBits := prefix.Bits() + newbits
	if newBits > 32 {
		return netip.Prefix{}, fmt.Errorf("prefix extension of %d bits is too large for %s", newbits, prefix)
	}
	if netnum < 0 || newbits >= 32 || netnum >= 1<<newbits {
		return netip.Prefix{}, fmt.Errorf("subnet number %d out of range for %d new bits", netnum, newbits)
	}

	base := ipToUint32(prefix.Masked().Addr())
	size := uint32(1) << (32 - newBits)
	addr := uint32FromIP(base + uint32(netnum)*size)

	return netip.PrefixFrom(addr, newBits), nil
}

// subnetAt returns the prefix of the given size whose first address sits
// offset addresses past the start of base. The offset must be aligned to the
// subnet size.
func subnetAt(base netip.Prefix, bits int, offset uint32) (netip.Prefix, error) {
	if bits < base.Bits() || bits > 32 {
		return netip.Prefix{}, fmt.Errorf("prefix length /%d does not fit inside %s", bits, base)
	}
	size := uint32(1) << (32 - bits)
	if offset%size != 0 {
		return netip.Prefix{}, fmt.Errorf("offset %d is not aligned to a /%d boundary", offset, bits)
	}

	start := ipToUint32(base.Masked().Addr())
	p := netip.PrefixFrom(uint32FromIP(start+offset), bits)
	if !base.Contains(p.Addr()) || !base.Contains(lastAddr(p)) {
		return netip.Prefix{}, fmt.Errorf("subnet %s falls outside %s", p, base)
	}
	return p, nil
}

func ipToUint32(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

func uint32FromIP(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}

func lastAddr(p netip.Prefix) netip.Addr {
	size := uint32(1) << (32 - p.Bits())
	return uint32FromIP(ipToUint32(p.Masked().Addr()) + size - 1)
}
