// Package config управляет настройками менеджера.
//
// Структура:
//   - settings.go — слой настроек: локальный YAML + строки из store
//   - watch.go    — fsnotify-наблюдение за файлом настроек
//   - disable.go  — durable локальное выключение менеджера
//
// Настройки загружаются один раз из локального YAML-файла и затем
// расширяются строками из удалённого settings view по имени менеджера.
// Опциональная settings-group заполняет пробелы, никогда не перекрывая
// локально загруженные значения.
//
// Сентинел UsingDefaults=true в локальном слое фатален: локальная
// конфигурация не была развёрнута, менеджер обязан отказаться стартовать.
package config
