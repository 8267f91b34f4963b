package main

import (
	"io/ioutil"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
)

// fileConfig is what can be given in the file named by --config. Flags
// and environment variables override it.
type fileConfig struct {
	URL       string  `json:"url"`
	Binding   string  `json:"binding"`
	Curl      string  `json:"curl"`
	CookieJar string  `json:"cookieJar"`
	Username  string  `json:"username"`
	Password  string  `json:"password"`
	Policy    string  `json:"policy"`
	RPS       float64 `json:"rps"`
}

func loadConfig(path string) (fileConfig, error) {
	var conf fileConfig
	bytes, err := ioutil.ReadFile(path)
	if err != nil {
		return conf, errors.Wrap(err, "reading config file")
	}
	if err := yaml.Unmarshal(bytes, &conf); err != nil {
		return conf, errors.Wrapf(err, "parsing config file %s", path)
	}
	return conf, nil
}
