package decode

// payment is one value output to someone other than the author.
type payment struct {
	vout    int
	address string
	sat     int64
	used    bool
}

// payments are the value outputs of one transaction, in output order.
type payments []*payment

func (ps *payments) add(vout int, address string, sat int64) {
	*ps = append(*ps, &payment{vout: vout, address: address, sat: sat})
}

// take consumes every unused payment to address and returns their sum.
func (ps payments) take(address string) int64 {
	var sum int64
	for _, p := range ps {
		if !p.used && p.address == address {
			sum += p.sat
			p.used = true
		}
	}
	return sum
}

// takeAll consumes every unused payment and returns their sum.
func (ps payments) takeAll() int64 {
	var sum int64
	for _, p := range ps {
		if !p.used {
			sum += p.sat
			p.used = true
		}
	}
	return sum
}

func (ps payments) remaining() []*payment {
	var out []*payment
	for _, p := range ps {
		if !p.used {
			out = append(out, p)
		}
	}
	return out
}
