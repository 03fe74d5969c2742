package config

import "github.com/joho/godotenv"

// LoadDotEnv reads .env files into the environment.
// Variables already set in the environment are left untouched.
func LoadDotEnv(paths ...string) error {
	return godotenv.Load(paths...)
}
