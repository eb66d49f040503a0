// Package manager — главный цикл выполнения capture task manager.
//
// Цикл: Requesting → Running(tool) → Closing → Requesting, с выходом в
// терминальный LoopExitCode, который интерпретирует внешняя обёртка
// рестарта (cmd/capman).
//
// Проверки в начале каждой итерации, в строгом порядке, первая
// сработавшая выигрывает:
//  1. configChanged → выход "restart with reloaded config"
//  2. менеджер неактивен в удалённом control store → "disabled remotely"
//  3. менеджер неактивен локально → "disabled locally"
//  4. превышен потолок подряд идущих ошибок → durable локальное
//     выключение, выход "excessive errors"
//  5. рабочая директория невалидна → durable выключение, выход
//  6. иначе — lease-запрос
//
// Каждый путь выхода пишет финальный снапшот и закрывающий banner через
// единый диспатч: новая причина выхода обязана идти через него, а не
// писать статус inline.
//
// Конкурентность: цикл синхронный и блокирующий; listener control-канала
// лишь взводит atomic-флаги (shutdown, configChanged), которые цикл
// читает в начале следующей итерации. Начатый lease всегда закрывается
// closeout'ом — shutdown берёт эффект только между итерациями.
package manager
