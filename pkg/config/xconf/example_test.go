package xconf_test

import (
	"fmt"

	"github.com/omeyang/xguard/pkg/config/xconf"
)

func ExampleConfig_Settings() {
	cfg, err := xconf.NewFromBytes([]byte(`
cache:
  null_ttl: 30s
  entity_ttls:
    shop: 1h
refresher:
  overflow: reject
`), xconf.FormatYAML)
	if err != nil {
		fmt.Println(err)
		return
	}

	s, err := cfg.Settings()
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(s.Cache.NullTTL, s.Cache.LockLease)
	fmt.Println(s.Cache.TTLFor("shop"), s.Cache.TTLFor("user"))
	fmt.Println(s.Refresher.Overflow)
	// Output:
	// 30s 10s
	// 1h0m0s 30m0s
	// reject
}
