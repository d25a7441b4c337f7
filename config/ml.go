package config

// MLConfig contains classifier configuration.
type MLConfig struct {
	// ModelPath is where trained model weights are persisted. When the file
	// does not exist the classifier trains on synthetic data and saves it.
	ModelPath string `env:"MODEL_PATH" envDefault:"model.json"`
}
